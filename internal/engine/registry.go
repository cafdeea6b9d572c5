package engine

import (
	"fmt"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/rs/zerolog"
)

// Registry holds every sequence by index. It is fixed after construction.
type Registry struct {
	sequences []*Sequence
	logger    zerolog.Logger
}

// NewRegistry wraps already built sequences. Sequence i is addressed by index i.
func NewRegistry(sequences []*Sequence, opts ...Option) *Registry {
	o := buildOptions(opts)
	copied := make([]*Sequence, len(sequences))
	copy(copied, sequences)
	return &Registry{
		sequences: copied,
		logger:    o.logger,
	}
}

// Build constructs one sequence per spec and returns their registry.
func Build(specs []SequenceSpec, factory *mission.Factory, opts ...Option) *Registry {
	if factory == nil {
		factory = mission.NewStandardFactory()
	}
	sequences := make([]*Sequence, 0, len(specs))
	for i, spec := range specs {
		sequences = append(sequences, NewSequence(i, spec, factory, opts...))
	}
	return NewRegistry(sequences, opts...)
}

// Len returns the number of sequences.
func (r *Registry) Len() int {
	return len(r.sequences)
}

// Sequence returns the sequence at index.
func (r *Registry) Sequence(index int) (*Sequence, error) {
	if err := r.checkIndex(index); err != nil {
		return nil, err
	}
	return r.sequences[index], nil
}

// Sequences returns all sequences in index order.
func (r *Registry) Sequences() []*Sequence {
	out := make([]*Sequence, len(r.sequences))
	copy(out, r.sequences)
	return out
}

// StartSequence starts the first mission of a sequence that has not started yet.
func (r *Registry) StartSequence(index int) error {
	seq, err := r.Sequence(index)
	if err != nil {
		return err
	}
	if seq.Started() {
		r.logger.Debug().Int("sequence", index).Msg("sequence already started")
		return ErrSequenceAlreadyStarted
	}
	return seq.StartNewMission()
}

// FinishCurrentMissionInSequence finishes the active mission of a sequence.
func (r *Registry) FinishCurrentMissionInSequence(index int) error {
	seq, err := r.Sequence(index)
	if err != nil {
		return err
	}
	return seq.FinishCurrentMission()
}

// Subscribe registers fn on every sequence.
func (r *Registry) Subscribe(fn Observer) mission.Subscription {
	group := make(subscriptionGroup, 0, len(r.sequences))
	for _, seq := range r.sequences {
		group = append(group, seq.OnCurrentMissionStateChanged(fn))
	}
	return group
}

// Snapshot returns a view of every sequence.
func (r *Registry) Snapshot() []SequenceSnapshot {
	out := make([]SequenceSnapshot, 0, len(r.sequences))
	for _, seq := range r.sequences {
		out = append(out, seq.Snapshot())
	}
	return out
}

// Close tears down every sequence.
func (r *Registry) Close() {
	for _, seq := range r.sequences {
		seq.Close()
	}
}

func (r *Registry) checkIndex(index int) error {
	if index < 0 || index >= len(r.sequences) {
		r.logger.Error().Int("sequence", index).Int("count", len(r.sequences)).Msg("sequence doesn't exist")
		return fmt.Errorf("%w: %d (have %d)", ErrSequenceIndexOutOfRange, index, len(r.sequences))
	}
	return nil
}
