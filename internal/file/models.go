package file

// RequestFile describes an upload that still lives on the chat transport side.
type RequestFile struct {
	Name   string
	Size   int64
	FileID string
}

// Photo is an accepted photo as seen in the order folder listing.
type Photo struct {
	// Index is 1-based in upload order.
	Index int
	// Key is the discriminator of the stored name, stable across deletions.
	Key  string
	Name string
	Path string
}

type DuplicatePair struct {
	First  string
	Second string
}
