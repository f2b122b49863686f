package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/pkg/payload"
	"github.com/strata-dev/strata/pkg/tree"
)

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a binary frame and print its contents",
		Long: `Decode a snapshot, diff, or error frame from a file and print a
human-readable summary. Useful for inspecting what a server sent.

Examples:
  strata decode snapshot.bin
  curl -s localhost:4400/view/home | strata decode -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			frame, err := payload.ReadFrame(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("reading frame: %w", err)
			}
			return printFrame(frame)
		},
	}
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return os.ReadFile("/dev/stdin")
	}
	return os.ReadFile(path)
}

func printFrame(frame *payload.Frame) error {
	switch frame.Type {
	case payload.FrameSnapshot:
		t, err := payload.DecodeSnapshotFrame(frame)
		if err != nil {
			return fmt.Errorf("decoding snapshot: %w", err)
		}
		fmt.Printf("snapshot  version=%d  nodes=%d\n", t.Version, tree.Count(t.Root))
		printNode(t.Root, 0)
		return nil

	case payload.FrameDiff:
		d, err := payload.DecodeDiffFrame(frame)
		if err != nil {
			return fmt.Errorf("decoding diff: %w", err)
		}
		fmt.Printf("diff  removed=%d added=%d updated=%d\n",
			len(d.Removed), len(d.Added), len(d.Updated))
		for _, id := range d.Removed {
			fmt.Printf("  - %s\n", id)
		}
		for _, a := range d.Added {
			fmt.Printf("  + %s under %s\n", a.Node.ID, a.ParentID)
		}
		for _, u := range d.Updated {
			fmt.Printf("  ~ %s payload=%v\n", u.ID, u.Payload)
		}
		return nil

	case payload.FrameError:
		code, message, err := payload.DecodeErrorFrame(frame)
		if err != nil {
			return fmt.Errorf("decoding error frame: %w", err)
		}
		fmt.Printf("error  code=%s  %s\n", code, message)
		return nil

	default:
		return fmt.Errorf("unknown frame type 0x%02x", byte(frame.Type))
	}
}

func printNode(n *tree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case tree.KindPlaceholder:
		fmt.Printf("%s%s [placeholder bundle=%s]\n", indent, n.ID, n.Activation.Bundle)
	case tree.KindError:
		fmt.Printf("%s%s [error] %v\n", indent, n.ID, n.Payload)
	default:
		fmt.Printf("%s%s %v\n", indent, n.ID, n.Payload)
	}
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}
