package fsm

type ChainDefinition struct {
	router *Router
	steps  []Step
}

// Chain starts a handler definition shared by all given steps.
func Chain(router *Router, steps ...Step) *ChainDefinition {
	return &ChainDefinition{
		router: router,
		steps:  steps,
	}
}

func (c *ChainDefinition) OnText(handler HandlerFunc) *ChainDefinition {
	for _, step := range c.steps {
		c.router.register(step, func(h *stepHandlers) { h.text = handler })
	}
	return c
}

func (c *ChainDefinition) OnMedia(handler HandlerFunc) *ChainDefinition {
	for _, step := range c.steps {
		c.router.register(step, func(h *stepHandlers) { h.media = handler })
	}
	return c
}

func (c *ChainDefinition) OnCallback(handler HandlerFunc) *ChainDefinition {
	for _, step := range c.steps {
		c.router.register(step, func(h *stepHandlers) { h.callback = handler })
	}
	return c
}

// Then moves the definition to other steps.
func (c *ChainDefinition) Then(steps ...Step) *ChainDefinition {
	c.steps = steps
	return c
}
