/*
Package guard is the caller-facing entry point of guardflow.

A [Guard] binds an output schema to a backend, a reask budget and optional
persistence. [Guard.Call] prompts the backend and validates what comes back,
reasking for the failing parts until the output passes or the budget is spent.
[Guard.Parse] validates an output the caller already has; reasks then go to the
backend when one is configured.

	tree, _ := schema.Build(root, validator.Default())
	g, err := guard.New(tree,
		guard.WithOpenAI("gpt-4o-mini"),
		guard.WithNumReasks(2),
		guard.WithStore(history.NewMemoryStore()),
	)
	out, err := g.Call(ctx, guard.Prompt("Name a pizza."))

A Guard is safe for concurrent use. Sessions share the schema tree read-only.
*/
package guard
