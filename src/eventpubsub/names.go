package eventpubsub

type EventName string

const (
	SimulationCreatedEvent EventName = "simulation.created"
	SimulationDeletedEvent EventName = "simulation.deleted"
)
