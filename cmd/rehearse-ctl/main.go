package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rehearse/internal/ipc"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		socket  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:          "rehearse-ctl",
		Short:        "Control a running rehearsed",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&socket, "socket", ipc.DefaultSocketPath, "Control socket path")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "How long to wait for the daemon")

	send := func(cmd *cobra.Command, msg ipc.ControlMessage) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		reply, err := ipc.Send(ctx, socket, msg)
		if err != nil {
			return fmt.Errorf("rehearsed not running: %w", err)
		}
		if !reply.OK {
			return errors.New(reply.Error)
		}
		if reply.Data == nil {
			return nil
		}
		out, err := json.MarshalIndent(reply.Data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	simple := func(use, short, name string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return send(cmd, ipc.ControlMessage{Cmd: name})
			},
		}
	}

	root.AddCommand(
		simple("start", "Start a new interview", ipc.CmdStart),
		simple("listen", "Open the microphone", ipc.CmdListen),
		simple("stop", "Stop listening and submit the answer", ipc.CmdStop),
		simple("toggle", "Toggle the microphone", ipc.CmdToggle),
		simple("end", "End the interview and store its summary", ipc.CmdEnd),
		simple("status", "Show the current session", ipc.CmdStatus),
		&cobra.Command{
			Use:   "say <text>",
			Short: "Submit a typed answer",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(cmd, ipc.ControlMessage{Cmd: ipc.CmdSubmit, Text: strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "answer <file>",
			Short: "Submit a recorded answer (wav, mp3 or ogg)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				return send(cmd, ipc.ControlMessage{Cmd: ipc.CmdAnswer, Path: path})
			},
		},
		profileCmd(send),
	)
	return root
}

func profileCmd(send func(*cobra.Command, ipc.ControlMessage) error) *cobra.Command {
	var (
		name, role, theme  string
		resumeFile, jdFile string
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the candidate profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := map[string]string{"name": name, "role": role, "theme": theme}
			for key, path := range map[string]string{"resume": resumeFile, "job_description": jdFile} {
				if path == "" {
					continue
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				p[key] = string(raw)
			}
			raw, err := json.Marshal(p)
			if err != nil {
				return err
			}
			return send(cmd, ipc.ControlMessage{Cmd: ipc.CmdProfile, Text: string(raw)})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Candidate name")
	cmd.Flags().StringVar(&role, "role", "", "Target role")
	cmd.Flags().StringVar(&theme, "theme", "", "UI theme (light or dark)")
	cmd.Flags().StringVar(&resumeFile, "resume", "", "Path to a plain-text resume")
	cmd.Flags().StringVar(&jdFile, "jd", "", "Path to a plain-text job description")
	return cmd
}
