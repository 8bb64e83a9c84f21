/*
Package session coordinates durable machine runs.

A run is a machine execution identified by a run ID whose transition journal
is persisted through ports.JournalStore. The Manager serializes access per
run with reference-counted in-process locks and, optionally, a distributed
locker for multi-replica hosts, so a journal always has a single writer.

Resume reconstructs a run from its persisted journal: it reloads the records,
seeks the machine to the requested state, replays the recorded output as
input, and persists the extended journal when the run settles.
*/
package session
