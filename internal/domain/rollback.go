package domain

// RollbackType selects which reverse action a RollbackRecord's node
// requires when C10 replays a command's records in reverse-insertion
// order (§4.10).
type RollbackType string

const (
	RollbackTypeDelete        RollbackType = "delete"
	RollbackTypeRestore       RollbackType = "restore"
	RollbackTypeMoveBack      RollbackType = "move_back"
	RollbackTypeRenameBack    RollbackType = "rename_back"
	RollbackTypeRestoreBackup RollbackType = "restore_backup"
	RollbackTypeRestoreMany   RollbackType = "restore_many"
)

// MovedFile is one origin/destination pair inside a RollbackTypeRestoreMany
// record's Metadata["moves"] JSON payload — used by `clean`, whose
// single node can relocate an arbitrary number of files in one pass
// (§4.10's one-record-per-node model still holds: the multiplicity
// lives inside the record, not as extra records).
type MovedFile struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// RollbackRecord is one reversible effect registered by the Execution
// Graph Runner before a node's action returns.
type RollbackRecord struct {
	CommandID    string
	NodeID       string
	Intent       Intent
	OriginalPath string
	BackupPath   string
	Type         RollbackType
	Metadata     map[string]string
	Executed     bool
}
