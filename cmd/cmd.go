// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads config.toml.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles first-run initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize the database and tenant configuration",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "tenant",
				Usage: "Create or update a tenant configuration",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "tenant",
						Aliases:  []string{"t"},
						Usage:    "Tenant identifier",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "leader",
						Usage: "User ID allowed to auto-trigger setlist processing (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "approver",
						Usage: "User ID allowed to select tracks and confirm (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "admin",
						Usage: "Tenant administrator user ID (repeatable)",
					},
					&cli.StringFlag{
						Name:  "channel",
						Usage: "Channel ID for completion announcements",
					},
					&cli.StringFlag{
						Name:  "playlist-template",
						Usage: "Playlist name template, may use {date} and {time}",
					},
					&cli.StringFlag{
						Name:  "updated-by",
						Usage: "User ID recorded as the author of this change",
					},
				},
				Action: r.SetupTenant,
			},
		},
	}
}

// processCommand runs setlist detection through workflow creation
func processCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "process",
		Aliases:   []string{"p"},
		Usage:     "Process a message as a setlist and start an approval workflow",
		ArgsUsage: "[message text]",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "tenant",
				Aliases:  []string{"t"},
				Usage:    "Tenant identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "author",
				Aliases:  []string{"a"},
				Usage:    "User ID of the message author",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel ID the message was posted in",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the message text from a file instead of the arguments",
			},
			&cli.BoolFlag{
				Name:  "manual",
				Usage: "Treat as an explicit command rather than an auto-trigger",
			},
		},
		Action: r.Process,
	}
}

// selectCommand applies a selection event against a tracked notification
func selectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "select",
		Aliases: []string{"s"},
		Usage:   "Apply an approve, reject, or numbered choice to a song notification",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "handle",
				Usage:    "Notification handle the selection replies to",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "approve",
				Usage: "Accept the proposed track",
			},
			&cli.BoolFlag{
				Name:  "reject",
				Usage: "Decline the proposed track",
			},
			&cli.IntFlag{
				Name:  "choice",
				Usage: "Pick candidate N from a multi-candidate notification",
			},
		},
		Action: r.Select,
	}
}

// overrideCommand applies a manual track override
func overrideCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "override",
		Aliases:   []string{"o"},
		Usage:     "Override a song's selection with a pasted track URL",
		ArgsUsage: "[override text]",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "handle",
				Usage: "Notification handle to override, when replying to a song message",
			},
			&cli.StringFlag{
				Name:    "workflow",
				Aliases: []string{"w"},
				Usage:   "Workflow ID, for 'use this <title> for <date> <url>' commands",
			},
		},
		Action: r.Override,
	}
}

// workflowCommand groups workflow-level operations
func workflowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Aliases: []string{"wf"},
		Usage:   "Confirm, retry, cancel, or list approval workflows",
		Commands: []*cli.Command{
			{
				Name:  "confirm",
				Usage: "Commit a workflow's selections to a playlist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "workflow",
						Aliases:  []string{"w"},
						Usage:    "Workflow ID",
						Required: true,
					},
				},
				Action: r.Confirm,
			},
			{
				Name:  "retry",
				Usage: "Retry the commit of a confirmed workflow",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "workflow",
						Aliases:  []string{"w"},
						Usage:    "Workflow ID",
						Required: true,
					},
				},
				Action: r.Retry,
			},
			{
				Name:  "cancel",
				Usage: "Cancel an active workflow",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "workflow",
						Aliases:  []string{"w"},
						Usage:    "Workflow ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "actor",
						Usage:    "User ID requesting the cancellation",
						Required: true,
					},
				},
				Action: r.Cancel,
			},
			{
				Name:   "status",
				Usage:  "List active workflows and their selection progress",
				Flags:  []cli.Flag{configFlag()},
				Action: r.Status,
			},
		},
	}
}

// learnCommand scans channel history for setlist patterns
func learnCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "learn",
		Aliases: []string{"l"},
		Usage:   "Scan channel messages and propose tenant extraction patterns",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "tenant",
				Aliases:  []string{"t"},
				Usage:    "Tenant identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a JSON file of channel messages",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "reviewer",
				Usage:    "User ID recorded as confirming the patterns",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Adopt the proposed patterns without the interactive review",
			},
		},
		Action: r.Learn,
	}
}
