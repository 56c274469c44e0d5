package ai

// SchemaVersion stamps persisted Q-tables with the encoder/action
// layout they were trained under. Bump it whenever a dimension's bin
// count or the action order changes in a way the top-left-block copy
// in QTableFromValues cannot absorb; stores reset all tables on a
// mismatch.
const SchemaVersion = 3
