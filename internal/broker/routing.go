package broker

// Every emission rides the EVENTS stream under a per-event subject so
// operators can filter traffic with the NATS CLI.
var (
	StreamName    = "EVENTS"
	SubjectEvents = StreamName + ".>"
)

func subjectFor(event string) string {
	return StreamName + "." + event
}
