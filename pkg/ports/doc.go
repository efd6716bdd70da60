/*
Package ports defines the driven ports (interfaces) of aoide.

These interfaces decouple the process coordinator and the workspace manager from
concrete adapters, so the same core can talk to a real node, an httptest fake, a
file store or Redis.

# Key Interfaces

  - Transport: read/submit/operator exchange with one compute node.
  - Signer: authorizes submit calls with a credential.
  - EventSink: receives structured log events.
  - ProjectStore: persists IDE projects and their process references.
  - DistributedLocker: serializes spawns for one project across replicas.
  - NotebookLoader: reads the ordered Lua cells of a notebook.
*/
package ports
