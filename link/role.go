package link

// Role is the part a peer plays in a session.
type Role uint8

const (
	// Primary drives the serial clock, it's the only one to start transfers.
	Primary Role = iota
	// Secondary answers the Primary's clock requests.
	Secondary
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return "unknown"
}
