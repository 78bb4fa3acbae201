package constants

// Stage names with special handling in the vehicle-check state machine.
const (
	StageSecurityEntry   = "Security Entry"
	StageSecurityExit    = "Security Exit"
	StageN1Calling       = "N-1 Calling"
	StageInteractiveBay  = "Interactive Bay"
	StageJobCardCreation = "Job Card Creation + Customer Approval"
	StageAdditionalWork  = "Additional Work Job Approval"
	StageReadyForWashing = "Ready for Washing"
	StageWashing         = "Washing"
	StageFinalInspection = "Final Inspection"
	StagePartsEstimate   = "Creation of Parts Estimate"

	StageBayWorkPrefix = "Bay Work"

	StageJobCardBayAllocation = "Job Card Received + Bay Allocation"
	StageJobCardByTechnician  = "Job Card Received (by Technician)"
	StageJobCardByFI          = "Job Card Received (by FI)"
)
