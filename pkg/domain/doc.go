/*
Package domain contains the core models shared by every aoide component.

It describes what travels between the IDE and a compute node (tags, spawn and
write requests, raw submit results, liveness records) and what the IDE keeps for
itself (projects, log events). The package is kept free of I/O so adapters can
depend on it without cycles.

# Key Entities

  - Tag: a named string attribute attached to a request. Tags flatten last-write-wins.
  - SpawnRequest / WriteRequest: explicit request shapes with a Fields() wire view.
  - RawResult: the decoded answer of a push call.
  - LivenessRecord: the state fetched while waiting for a process to become live.
  - SpawnResult: the process reference plus its readiness outcome.
  - Project: a persisted workspace entry pointing at a process.
  - Cell: one Lua snippet of a notebook, evaluated in order.
*/
package domain
