package measure

// Stage names a step of the ingestion state machine. A batch moves forward
// through the stages in declaration order or ends in StageRejected.
type Stage string

const (
	StageReceived            Stage = "received"
	StageParsed              Stage = "parsed"
	StageSizeValidated       Stage = "size_validated"
	StageFiltered            Stage = "filtered"
	StageTemperatureResolved Stage = "temperature_resolved"
	StageConverted           Stage = "converted"
	StageScoreComputed       Stage = "score_computed"
	StageBoundsValidated     Stage = "bounds_validated"
	StagePersisted           Stage = "persisted"
	StageRejected            Stage = "rejected"
)
