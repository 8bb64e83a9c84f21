/*
Package ports defines the driven ports (interfaces) for the lattice engine's
operational surface.

These interfaces decouple run persistence from concrete backends, allowing
journals to live in memory, Redis, or anything else that can hold an ordered
record sequence.

# Key Interfaces

  - JournalStore: persists transition journals per run ID, enabling
    "stop & resume" workflows.
  - DistributedLocker: coordinates run access across replicas.
*/
package ports
