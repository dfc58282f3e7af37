package dispatcher

// State is where a call is in the pipeline.
type State int

const (
	Received State = iota
	Authenticated
	Authorized
	QuotaChecked
	ArgumentsValidated
	Executed
	Metered
	Logged
	Responded
)

var stateNames = [...]string{
	"received",
	"authenticated",
	"authorized",
	"quota_checked",
	"arguments_validated",
	"executed",
	"metered",
	"logged",
	"responded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
