package metrics

// Component label values used by app-level metrics.
const (
	ComponentKafka  = "kafka"
	ComponentStore  = "store"
	ComponentReader = "reader"
	ComponentSyncer = "syncer"
)
