package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// SessionsEndpoint is the endpoint for creating a session (POST) and
	// listing session IDs (GET)
	SessionsEndpoint = "/sessions"
	// SessionEndpoint is the endpoint to get a session record
	SessionURLParam = "sessionId"
	SessionEndpoint = "/sessions/{" + SessionURLParam + "}"
	// SessionTallyEndpoint returns the tally and participation summary of
	// a session
	SessionTallyEndpoint = "/sessions/{" + SessionURLParam + "}/tally"
	// CommitmentsEndpoint is the endpoint for submitting a vote commitment
	CommitmentsEndpoint = "/sessions/{" + SessionURLParam + "}/commitments"
	// RevealsEndpoint is the endpoint for revealing a committed vote
	RevealsEndpoint = "/sessions/{" + SessionURLParam + "}/reveals"
	// FinalizeEndpoint closes a session and publishes its Merkle root
	FinalizeEndpoint = "/sessions/{" + SessionURLParam + "}/finalize"

	// RostersEndpoint is the endpoint for creating a new eligibility roster
	RostersEndpoint = "/rosters"
	// Roster endpoints operate on a single roster by UUID
	RosterURLParam            = "rosterId"
	RosterEndpoint            = "/rosters/{" + RosterURLParam + "}"
	RosterParticipantsEnpoint = "/rosters/{" + RosterURLParam + "}/participants"
	RosterRootEndpoint        = "/rosters/{" + RosterURLParam + "}/root"
	RosterSizeEndpoint        = "/rosters/{" + RosterURLParam + "}/size"
	RosterProofEndpoint       = "/rosters/{" + RosterURLParam + "}/proof"

	// EligibilityRootEndpoint gets (GET) or replaces (POST, admin) the
	// published eligibility root
	EligibilityRootEndpoint = "/eligibility/root"

	// Delegation proofs are checked without touching registry state
	VerifyDelegationEndpoint = "/verify/delegation"
	VerifyBatchEndpoint      = "/verify/batch"

	// Admin endpoints for the global pause switch and role management
	PauseEndpoint   = "/admin/pause"
	UnpauseEndpoint = "/admin/unpause"
	PausedEndpoint  = "/admin/paused"
	RolesEndpoint   = "/admin/roles"
)
