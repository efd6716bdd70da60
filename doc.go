/*
Package aoide is the backend of a small IDE for programs that run on AO
processes hosted by a HyperBEAM node.

It spawns a process, waits until the node reports it live, and relays eval
and message calls to it. Everything the IDE does is recorded as structured
log events that the web shell can stream.

# Usage

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	client, err := aoide.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	res, err := client.Coordinator.Spawn(ctx, domain.SpawnRequest{})
	if err != nil {
		log.Fatal(err)
	}
	out, err := client.Coordinator.Evaluate(ctx, res.Process, "return 1 + 1")

# Layout

  - pkg/adapters/hyperbeam: transport to the node.
  - pkg/monitor: liveness polling.
  - pkg/process: spawn, write and evaluate.
  - pkg/eventlog: the event recorder.
  - pkg/workspace: projects and the process each one deploys to.
  - pkg/editor: input-mode coordination of editor panes.
  - pkg/notebook: ordered evaluation of markdown cells.
*/
package aoide
