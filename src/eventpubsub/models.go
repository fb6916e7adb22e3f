package eventpubsub

import (
	"time"

	"github.com/jiaming2012/optionprisma/src/models"
)

type SimulationCreated struct {
	Result models.SimulationResult
}

type SimulationDeleted struct {
	SimulationID string
	DeletedAt    time.Time
}
