package apperror

type Kind string

const (
	InvalidInput Kind = "invalid_input"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Unauthorised Kind = "unauthorised"
	Unavailable  Kind = "unavailable"
	Internal     Kind = "internal"
)
