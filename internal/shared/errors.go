package shared

type Error string

// Implement the error interface
func (e Error) Error() string { return string(e) }

//------------
// Definitions
//------------

// cli errors
const (
	ErrorCreateFile = Error("could not create the file")
	ErrorEncodeFile = Error("could not encode to file")
)

// storage errors
const (
	ErrPathTraversal = Error("invalid path: potential path traversal")
	ErrNotRegular    = Error("not a regular file")
)

// naming errors
const ErrInvalidName = Error("invalid name")
