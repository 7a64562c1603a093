// Package bootstrap runs the lifecycle of a flowkit process: validate the
// config, initialize logging and telemetry, build the dispatcher pools,
// start components, run the workload and shut everything down in reverse.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(server)
//	return app.Run(ctx)
//
// RunTask is the finite variant used by CLI scenarios.
package bootstrap
