package enum

type EntityType string

const (
	PIPELINE_RUN EntityType = "PIPELINE_RUN"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
