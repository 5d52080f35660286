package consts

// SchemaAdvisoryLockID is a unique integer used for a PostgreSQL advisory lock
// so that only one process at a time runs schema synchronization.
const SchemaAdvisoryLockID = 91413207 // A randomly chosen integer
