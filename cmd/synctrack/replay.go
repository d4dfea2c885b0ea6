package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"github.com/vkngwrapper/arsenal/synctrack/syncstate"
)

var (
	replayDump     bool
	replayValidate bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.json>",
	Short: "Replay a script of buffer and image accesses",
	Long: `Replays the accesses in a JSON script against fresh trackers and prints the
barriers each access requires. Buffers also track queue family ownership through
the acquire and release ops.`,
	Example: `  # Print the barriers for every step
  synctrack replay frame.json

  # Also dump every tracker's final state as JSON
  synctrack replay --dump frame.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayDump, "dump", false, "Print the final state of every tracker as JSON")
	replayCmd.Flags().BoolVar(&replayValidate, "validate", false, "Validate every tracker after each step")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to read replay script %s", args[0])
	}

	s, err := parseScript(data)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if quiet {
		out = io.Discard
	}

	r, err := newReplayer(s, out, syncstate.TrackerOptions{Logger: newLogger()})
	if err != nil {
		return err
	}
	r.validateSteps = replayValidate

	err = r.run()
	if err != nil {
		return err
	}

	if verbose {
		r.logState()
	}

	if replayDump {
		_, err = cmd.OutOrStdout().Write(r.dump())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

type bufferResource struct {
	tracker *syncstate.BufferTracker
	owners  *syncstate.OwnershipMap
}

// replayer owns one tracker per declared resource and applies script steps to them in order
type replayer struct {
	script        *script
	out           io.Writer
	validateSteps bool

	buffers map[string]bufferResource
	images  map[string]*syncstate.ImageTracker
}

func newReplayer(s *script, out io.Writer, options syncstate.TrackerOptions) (*replayer, error) {
	r := &replayer{
		script:  s,
		out:     out,
		buffers: make(map[string]bufferResource),
		images:  make(map[string]*syncstate.ImageTracker),
	}

	for _, decl := range s.Buffers {
		tracker, err := syncstate.NewBufferTracker(decl.Size, options)
		if err != nil {
			return nil, errors.Wrapf(err, "buffer %s", decl.Name)
		}

		owners, err := syncstate.NewOwnershipMap(decl.Size, options)
		if err != nil {
			return nil, errors.Wrapf(err, "buffer %s", decl.Name)
		}

		r.buffers[decl.Name] = bufferResource{tracker: tracker, owners: owners}
	}

	for _, decl := range s.Images {
		tracker, err := syncstate.NewImageTracker(decl.AspectMask, decl.MipLevels, decl.ArrayLayers, options)
		if err != nil {
			return nil, errors.Wrapf(err, "image %s", decl.Name)
		}

		r.images[decl.Name] = tracker
	}

	return r, nil
}

func (r *replayer) run() error {
	for i, step := range r.script.Steps {
		var err error
		if step.Buffer != "" {
			err = r.bufferStep(i, step)
		} else {
			err = r.imageStep(i, step)
		}

		if err != nil {
			return errors.Wrapf(err, "step %d", i)
		}

		if r.validateSteps {
			err = r.validate()
			if err != nil {
				return errors.NewAssertionErrorWithWrappedErrf(err, "trackers are inconsistent after step %d", i)
			}
		}
	}

	return nil
}

func (r *replayer) bufferStep(index int, step scriptStep) error {
	buffer, ok := r.buffers[step.Buffer]
	if !ok {
		return errors.Newf("unknown buffer %q", step.Buffer)
	}

	fmt.Fprintf(r.out, "step %d: %s buffer %s [%d..%d)\n", index, step.Op, step.Buffer, step.Offset, step.Offset+step.Size)

	switch step.Op {
	case opAccess:
		barriers, err := buffer.tracker.Access(step.Offset, step.Size, step.Access)
		if err != nil {
			return err
		}
		printBarriers(r.out, barriers)
	case opState:
		states, err := buffer.tracker.State(step.Offset, step.Size)
		if err != nil {
			return err
		}
		printStates(r.out, states)
	case opDiscard:
		states, err := buffer.tracker.Discard(step.Offset, step.Size)
		if err != nil {
			return err
		}
		printStates(r.out, states)
	case opAcquire:
		transfers, err := buffer.owners.Acquire(step.Offset, step.Size, step.Access.QueueFamily)
		if err != nil {
			return err
		}
		for _, transfer := range transfers {
			fmt.Fprintf(r.out, "  transfer [%d..%d) queue %d -> %d\n", transfer.Offset, transfer.Offset+transfer.Size,
				transfer.SrcQueueFamily, transfer.DstQueueFamily)
		}
	case opRelease:
		released, err := buffer.owners.Release(step.Offset, step.Size)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "  released %d bytes\n", released)
	}

	return nil
}

func (r *replayer) imageStep(index int, step scriptStep) error {
	image, ok := r.images[step.Image]
	if !ok {
		return errors.Newf("unknown image %q", step.Image)
	}

	sub := step.Subresources
	fmt.Fprintf(r.out, "step %d: %s image %s aspects=%v mips [%d..%d) layers [%d..%d)\n", index, step.Op, step.Image,
		sub.AspectMask, sub.BaseMipLevel, sub.BaseMipLevel+sub.LevelCount, sub.BaseArrayLayer, sub.BaseArrayLayer+sub.LayerCount)

	switch step.Op {
	case opAccess:
		barriers, err := image.Access(sub, step.Access)
		if err != nil {
			return err
		}
		printBarriers(r.out, barriers)
	case opState:
		states, err := image.State(sub)
		if err != nil {
			return err
		}
		printStates(r.out, states)
	case opDiscard:
		states, err := image.Discard(sub)
		if err != nil {
			return err
		}
		printStates(r.out, states)
	}

	return nil
}

func formatScope(scope syncstate.AccessScope) string {
	return fmt.Sprintf("access=%v stages=%v layout=%v queue=%d", scope.AccessMask, scope.StageMask, scope.Layout, scope.QueueFamily)
}

func formatRegions[T region.Coordinate](regions []region.Region[T]) string {
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " ")
}

func printBarriers[T region.Coordinate](out io.Writer, barriers []syncstate.Barrier[T]) {
	if len(barriers) == 0 {
		fmt.Fprintln(out, "  no barrier")
		return
	}

	for _, barrier := range barriers {
		var notes []string
		if barrier.IsLayoutTransition() {
			notes = append(notes, "layout transition")
		}
		if barrier.IsOwnershipTransfer() {
			notes = append(notes, "ownership transfer")
		}

		fmt.Fprintf(out, "  barrier %s\n    src %s\n    dst %s\n", formatRegions(barrier.Regions),
			formatScope(barrier.Src), formatScope(barrier.Dst))
		if len(notes) > 0 {
			fmt.Fprintf(out, "    %s\n", strings.Join(notes, ", "))
		}
	}
}

func printStates[T region.Coordinate](out io.Writer, states []syncstate.RangeState[T]) {
	if len(states) == 0 {
		fmt.Fprintln(out, "  untracked")
		return
	}

	for _, state := range states {
		fmt.Fprintf(out, "  %s: %s\n", formatRegions(state.Regions), formatScope(state.State))
	}
}

func (r *replayer) validate() error {
	for _, decl := range r.script.Buffers {
		buffer := r.buffers[decl.Name]
		if err := buffer.tracker.Validate(); err != nil {
			return errors.Wrapf(err, "buffer %s", decl.Name)
		}
		if err := buffer.owners.Validate(); err != nil {
			return errors.Wrapf(err, "buffer %s ownership", decl.Name)
		}
	}

	for _, decl := range r.script.Images {
		if err := r.images[decl.Name].Validate(); err != nil {
			return errors.Wrapf(err, "image %s", decl.Name)
		}
	}

	return nil
}

func (r *replayer) logState() {
	for _, decl := range r.script.Buffers {
		r.buffers[decl.Name].tracker.LogState()
	}
	for _, decl := range r.script.Images {
		r.images[decl.Name].LogState()
	}
}

func (r *replayer) statistics() synctrack.Statistics {
	var stats synctrack.Statistics
	for _, decl := range r.script.Buffers {
		r.buffers[decl.Name].tracker.AddStatistics(&stats)
	}
	for _, decl := range r.script.Images {
		r.images[decl.Name].AddStatistics(&stats)
	}
	return stats
}

// dump writes every tracker's state in declaration order
func (r *replayer) dump() []byte {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	stats := r.statistics()
	statsObj := obj.Name("Statistics").Object()
	statsObj.Name("TrackerCount").Int(stats.TrackerCount)
	statsObj.Name("EntryCount").Int(stats.EntryCount)
	statsObj.Name("TrackedVolume").Int(int(stats.TrackedVolume))
	statsObj.Name("DomainVolume").Int(int(stats.DomainVolume))
	statsObj.End()

	buffers := obj.Name("Buffers").Array()
	for _, decl := range r.script.Buffers {
		buffer := r.buffers[decl.Name]

		bufferObj := buffers.Object()
		bufferObj.Name("Name").String(decl.Name)

		trackerObj := bufferObj.Name("Access").Object()
		buffer.tracker.JsonData(&trackerObj)
		trackerObj.End()

		ownersObj := bufferObj.Name("Ownership").Object()
		buffer.owners.JsonData(&ownersObj)
		ownersObj.End()

		bufferObj.End()
	}
	buffers.End()

	images := obj.Name("Images").Array()
	for _, decl := range r.script.Images {
		imageObj := images.Object()
		imageObj.Name("Name").String(decl.Name)

		trackerObj := imageObj.Name("Access").Object()
		r.images[decl.Name].JsonData(&trackerObj)
		trackerObj.End()

		imageObj.End()
	}
	images.End()

	obj.End()
	return writer.Bytes()
}
