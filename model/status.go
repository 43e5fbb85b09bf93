package model

// Worker liveness states. A worker enters "starting" when registered,
// "running" once its supervisor goroutine begins stepping and "stopped"
// after its engine instance has been closed. The state only ever moves
// forward.
const (
	WorkerStarting = "starting"
	WorkerRunning  = "running"
	WorkerStopped  = "stopped"
)

// StatusView is a read-only snapshot of one worker taken by the
// registry's Status and List operations. Callers must not rely on any
// ordering of views returned by List.
type StatusView struct {
	ServerID      int    `json:"server_id"`
	Port          int    `json:"port"`
	NumAtoms      int    `json:"num_atoms"`
	StructureFile string `json:"structure_file"`
	State         string `json:"status"`
	Running       bool   `json:"running"`
}
