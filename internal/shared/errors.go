package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrNoApprovers   = fmt.Errorf("no approvers configured")
	ErrNotPermitted  = fmt.Errorf("actor not permitted")

	// Parsing errors
	ErrNotASetlist    = fmt.Errorf("message is not a setlist")
	ErrParseFailure   = fmt.Errorf("setlist detected but could not be parsed")
	ErrInvalidPattern = fmt.Errorf("invalid extraction pattern")

	// Workflow errors
	ErrWorkflowNotFound   = fmt.Errorf("workflow not found")
	ErrWorkflowFinalized  = fmt.Errorf("workflow already finalized")
	ErrUnknownReplyTarget = fmt.Errorf("reply does not target a tracked notification")
	ErrMissingSelections  = fmt.Errorf("required songs are missing selections")

	// Collaborator errors
	ErrDelivery         = fmt.Errorf("notification delivery failed")
	ErrCommit           = fmt.Errorf("playlist commit failed")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrCatalogRequest   = fmt.Errorf("catalog request failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
