package session

import (
	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/inspect"
	"photo-intake-bot/internal/pkg/model"
)

// Upload is an incoming photo that has not been downloaded yet.
type Upload struct {
	ID           string
	FileID       string
	Name         string
	Size         int64
	MediaGroupID string
	// Lossy is set for images the transport recompressed.
	Lossy bool
}

// Session is the state of one conversation. Copies handed out by the machine are detached.
type Session struct {
	UserID                  int64
	OrderNumber             string
	StoragePath             string
	RequiredCount           int
	State                   State
	SuppressQualityWarnings bool
	Editing                 bool
	Pending                 []Upload
}

func (s Session) clone() Session {
	c := s
	c.Pending = append([]Upload(nil), s.Pending...)
	return c
}

type Progress struct {
	Uploaded int
	Required int
	State    State
}

// Missing returns how many photos are still needed, never negative.
func (p Progress) Missing() int {
	return max(p.Required-p.Uploaded, 0)
}

type Opened struct {
	Progress
	OrderNumber string
	// Resumed is set when the folder already held photos.
	Resumed            bool
	PreviousDispatches int
	// Review is filled when the order is complete right away.
	Review *Review
}

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeIntercepted
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeIntercepted:
		return "intercepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type PhotoResult struct {
	Progress
	Outcome  Outcome
	UploadID string
	// Name is the stored file name of an accepted photo.
	Name   string
	Report inspect.Report
	// Reason explains a rejection.
	Reason error
	// Pending counts intercepted uploads still waiting for a decision.
	Pending int
	// Completed is set on the upload that moved the session to Complete.
	Completed bool
	Review    *Review
}

type PhotoReport struct {
	Photo  file.Photo
	Report inspect.Report
}

type Review struct {
	Photos []PhotoReport
	Pairs  []file.DuplicatePair
}

// Flagged returns the photos carrying at least one advisory warning.
func (r *Review) Flagged() []PhotoReport {
	var out []PhotoReport
	for _, p := range r.Photos {
		if p.Report.Flags.Any() {
			out = append(out, p)
		}
	}
	return out
}

type Block struct {
	Index int
	// First and Last are 1-based photo indexes, inclusive.
	First int
	Last  int
}

type BlockReview struct {
	Progress
	Block  Block
	Blocks []Block
	Photos []PhotoReport
}

type Removal struct {
	Progress
	Name    string
	Removed bool
}

type Dispatched struct {
	Progress
	Sent     bool
	Dispatch model.Dispatch
}
