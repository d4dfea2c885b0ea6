package history_test

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/synctrack"
	"github.com/vkngwrapper/arsenal/synctrack/history"
	mock_history "github.com/vkngwrapper/arsenal/synctrack/history/mocks"
	"github.com/vkngwrapper/arsenal/synctrack/region"
	"go.uber.org/mock/gomock"
)

func rect(x0, y0, x1, y1 int) region.Region[int] {
	return region.MustNew([]int{x0, y0}, []int{x1, y1})
}

func newTracker(t *testing.T, domain region.Region[int]) *history.Tracker[int, int] {
	tracker, err := history.NewTracker[int, int](domain)
	require.NoError(t, err)
	return tracker
}

// replaceWith writes value over every touched area
func replaceWith(value int) history.TransitionFuncs[int, int] {
	return history.TransitionFuncs[int, int]{
		Override: func(overlap []region.Region[int], current int, containing region.Region[int]) history.Action[int] {
			return history.Update(value)
		},
		Create: func(r region.Region[int]) int {
			return value
		},
	}
}

func clearAll() history.TransitionFuncs[int, int] {
	return history.TransitionFuncs[int, int]{
		Override: func(overlap []region.Region[int], current int, containing region.Region[int]) history.Action[int] {
			return history.Clear[int]()
		},
	}
}

type visibleEntry struct {
	Regions []region.Region[int]
	Value   int
}

func visibleEntries(t *testing.T, tracker *history.Tracker[int, int]) []visibleEntry {
	var entries []visibleEntry
	err := tracker.VisitRegions(func(visible []region.Region[int], value int) error {
		entries = append(entries, visibleEntry{
			Regions: append([]region.Region[int](nil), visible...),
			Value:   value,
		})
		return nil
	})
	require.NoError(t, err)
	return entries
}

func TestNewTrackerRejectsEmptyDomain(t *testing.T) {
	_, err := history.NewTracker[int, int](rect(0, 0, 0, 4))
	require.True(t, errors.Is(err, synctrack.ErrInvalidArgument))

	_, err = history.NewTracker[int, int](region.Region[int]{})
	require.True(t, errors.Is(err, synctrack.ErrDimensionMismatch))
}

func TestOverrideDisjointRegions(t *testing.T) {
	tracker := newTracker(t, rect(0, 0, 8, 8))
	require.True(t, tracker.IsEmpty())

	tracker.Override([]region.Region[int]{rect(0, 0, 2, 2)}, replaceWith(1))
	tracker.Override([]region.Region[int]{rect(0, 2, 2, 6)}, replaceWith(2))

	require.False(t, tracker.IsEmpty())
	require.Equal(t, 2, tracker.EntryCount())
	require.Equal(t, uint64(12), tracker.TrackedVolume())
	require.NoError(t, tracker.Validate())

	type entry struct {
		Region       region.Region[int]
		ActiveVolume uint64
		Value        int
	}
	var entries []entry
	err := tracker.VisitEntries(func(r region.Region[int], activeVolume uint64, value int) error {
		entries = append(entries, entry{r, activeVolume, value})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []entry{
		{rect(0, 2, 2, 6), 8, 2},
		{rect(0, 0, 2, 2), 4, 1},
	}, entries)
}

func TestOverrideClearFullDomain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	domain := rect(0, 0, 4, 4)
	tracker := newTracker(t, domain)
	tracker.Override([]region.Region[int]{rect(0, 0, 4, 2)}, replaceWith(1))
	tracker.Override([]region.Region[int]{rect(0, 2, 4, 4)}, replaceWith(2))
	require.Equal(t, domain.Volume(), tracker.TrackedVolume())

	transitions := mock_history.NewMockTransitionSystem[int, int](ctrl)
	gomock.InOrder(
		transitions.EXPECT().OnOverride([]region.Region[int]{rect(0, 2, 4, 4)}, 2, rect(0, 2, 4, 4)).Return(history.Clear[int]()),
		transitions.EXPECT().OnClear([]region.Region[int]{rect(0, 2, 4, 4)}, 2, rect(0, 2, 4, 4)),
		transitions.EXPECT().OnOverride([]region.Region[int]{rect(0, 0, 4, 2)}, 1, rect(0, 0, 4, 2)).Return(history.Clear[int]()),
		transitions.EXPECT().OnClear([]region.Region[int]{rect(0, 0, 4, 2)}, 1, rect(0, 0, 4, 2)),
	)

	tracker.Override([]region.Region[int]{domain}, transitions)

	require.True(t, tracker.IsEmpty())
	require.Equal(t, 0, tracker.EntryCount())
	require.Equal(t, uint64(0), tracker.TrackedVolume())
	require.NoError(t, tracker.Validate())

	var stats synctrack.DetailedStatistics
	stats.Clear()
	tracker.AddDetailedStatistics(&stats)
	require.Equal(t, 0, stats.ClearedMarkerCount)
}

func TestUpdateOnEmptyTracker(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tracker := newTracker(t, rect(0, 0, 8, 8))

	// No expectations: any callback fails the test
	transitions := mock_history.NewMockTransitionSystem[int, int](ctrl)
	tracker.Update([]region.Region[int]{rect(0, 0, 2, 2), rect(4, 4, 8, 8)}, transitions)

	require.True(t, tracker.IsEmpty())
}

func TestUpdateReportsOverlaps(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 100))
	tracker.Override([]region.Region[int]{region.Span(0, 50)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(25, 75)}, replaceWith(2))
	require.NoError(t, tracker.Validate())

	type update struct {
		Overlap    []region.Region[int]
		Value      int
		Containing region.Region[int]
	}
	var updates []update
	tracker.Update([]region.Region[int]{region.Span(10, 60)}, history.TransitionFuncs[int, int]{
		Update: func(overlap []region.Region[int], value *int, containing region.Region[int]) {
			updates = append(updates, update{overlap, *value, containing})
		},
	})

	require.Equal(t, []update{
		{[]region.Region[int]{region.Span(25, 50)}, 2, region.Span(25, 50)},
		{[]region.Region[int]{region.Span(50, 60)}, 2, region.Span(50, 75)},
		{[]region.Region[int]{region.Span(10, 25)}, 1, region.Span(0, 50)},
	}, updates)

	// Update never restructures the chain
	require.Equal(t, 3, tracker.EntryCount())
	require.Equal(t, uint64(75), tracker.TrackedVolume())
}

func TestUpdateModifiesValuesInPlace(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 100))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(20, 30)}, replaceWith(2))

	tracker.Update([]region.Region[int]{region.Span(5, 25)}, history.TransitionFuncs[int, int]{
		Update: func(overlap []region.Region[int], value *int, containing region.Region[int]) {
			*value += 10
		},
	})

	require.Equal(t, []visibleEntry{
		{[]region.Region[int]{region.Span(20, 30)}, 12},
		{[]region.Region[int]{region.Span(0, 10)}, 11},
	}, visibleEntries(t, tracker))
}

func TestOverrideSplitsPartialUpdate(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(3, 5)}, replaceWith(2))
	require.NoError(t, tracker.Validate())

	entries := visibleEntries(t, tracker)
	require.Len(t, entries, 2)
	require.Equal(t, visibleEntry{[]region.Region[int]{region.Span(3, 5)}, 2}, entries[0])
	require.Equal(t, 1, entries[1].Value)
	require.ElementsMatch(t, []region.Region[int]{region.Span(0, 3), region.Span(5, 10)}, entries[1].Regions)

	// Each remaining entry is overridden across its whole visible area, so both are updated in place
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(3))
	require.NoError(t, tracker.Validate())
	require.Equal(t, 2, tracker.EntryCount())

	err := tracker.VisitEntries(func(r region.Region[int], activeVolume uint64, value int) error {
		require.Equal(t, 3, value)
		return nil
	})
	require.NoError(t, err)
}

func TestOverrideIgnoreKeepsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 6)}, replaceWith(1))

	transitions := mock_history.NewMockTransitionSystem[int, int](ctrl)
	transitions.EXPECT().OnOverride([]region.Region[int]{region.Span(4, 6)}, 1, region.Span(0, 6)).Return(history.Ignore[int]())
	transitions.EXPECT().OnCreate(region.Span(6, 10)).Return(5)

	tracker.Override([]region.Region[int]{region.Span(4, 10)}, transitions)

	require.NoError(t, tracker.Validate())
	require.Equal(t, []visibleEntry{
		{[]region.Region[int]{region.Span(6, 10)}, 5},
		{[]region.Region[int]{region.Span(0, 6)}, 1},
	}, visibleEntries(t, tracker))
}

func TestOverrideClearCallsOnClearWhenEmptied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))

	transitions := mock_history.NewMockTransitionSystem[int, int](ctrl)
	transitions.EXPECT().OnOverride([]region.Region[int]{region.Span(0, 4)}, 1, region.Span(0, 10)).Return(history.Clear[int]())

	tracker.Override([]region.Region[int]{region.Span(0, 4)}, transitions)
	require.NoError(t, tracker.Validate())
	require.False(t, tracker.IsEmpty())
	require.Equal(t, uint64(6), tracker.TrackedVolume())

	gomock.InOrder(
		transitions.EXPECT().OnOverride([]region.Region[int]{region.Span(4, 10)}, 1, region.Span(0, 10)).Return(history.Clear[int]()),
		transitions.EXPECT().OnClear([]region.Region[int]{region.Span(4, 10)}, 1, region.Span(0, 10)),
	)

	tracker.Override([]region.Region[int]{region.Span(4, 10)}, transitions)
	require.NoError(t, tracker.Validate())
	require.True(t, tracker.IsEmpty())
}

func TestClearedAreaIsTreatedAsUntracked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(0, 4)}, clearAll())

	require.Equal(t, []visibleEntry{
		{[]region.Region[int]{region.Span(4, 10)}, 1},
	}, visibleEntries(t, tracker))

	transitions := mock_history.NewMockTransitionSystem[int, int](ctrl)
	transitions.EXPECT().OnCreate(region.Span(0, 2)).Return(7)

	tracker.Override([]region.Region[int]{region.Span(0, 2)}, transitions)

	require.NoError(t, tracker.Validate())
	require.Equal(t, []visibleEntry{
		{[]region.Region[int]{region.Span(0, 2)}, 7},
		{[]region.Region[int]{region.Span(4, 10)}, 1},
	}, visibleEntries(t, tracker))
	require.Equal(t, uint64(8), tracker.TrackedVolume())

	// The cleared gap stays untracked for reads
	tracker.Update([]region.Region[int]{region.Span(2, 4)}, transitions)
}

func TestInvalidArgumentsPanic(t *testing.T) {
	tracker := newTracker(t, rect(0, 0, 4, 4))
	tracker.Override([]region.Region[int]{rect(0, 0, 2, 2)}, replaceWith(1))

	testCases := map[string][]region.Region[int]{
		"NoRegions":         nil,
		"EmptyRegion":       {rect(0, 0, 2, 2), rect(1, 1, 1, 3)},
		"OutsideDomain":     {rect(2, 2, 5, 4)},
		"DimensionMismatch": {region.Span(0, 2)},
		"ZeroValue":         {{}},
	}

	for testName, regions := range testCases {
		t.Run(testName, func(t *testing.T) {
			requirePanicsWith(t, synctrack.ErrInvalidArgument, func() {
				tracker.Override(regions, replaceWith(2))
			})
			requirePanicsWith(t, synctrack.ErrInvalidArgument, func() {
				tracker.Update(regions, replaceWith(2))
			})
		})
	}

	requirePanicsWith(t, synctrack.ErrInvalidArgument, func() {
		tracker.Override([]region.Region[int]{rect(0, 0, 4, 4)}, nil)
	})

	// Rejected calls never touch the tracker
	require.Equal(t, []visibleEntry{
		{[]region.Region[int]{rect(0, 0, 2, 2)}, 1},
	}, visibleEntries(t, tracker))
}

func requirePanicsWith(t *testing.T, target error, f func()) {
	t.Helper()

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)

		err, isErr := recovered.(error)
		require.True(t, isErr)
		require.True(t, errors.Is(err, target))
	}()

	f()
}

func TestOverlappingInputIsNormalized(t *testing.T) {
	created := 0
	tracker := newTracker(t, region.Span(0, 20))
	tracker.Override([]region.Region[int]{region.Span(0, 10), region.Span(5, 15)}, history.TransitionFuncs[int, int]{
		Create: func(r region.Region[int]) int {
			created++
			return created
		},
	})

	require.NoError(t, tracker.Validate())
	require.Equal(t, uint64(15), tracker.TrackedVolume())
	require.Equal(t, 2, created)
}

func TestIdempotentRequery(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	tracker := newTracker(t, rect(0, 0, 8, 8))

	for i := 0; i < 40; i++ {
		tracker.Override([]region.Region[int]{randomRegion(rng)}, replaceWith(i))
	}

	for _, entry := range visibleEntries(t, tracker) {
		for _, piece := range entry.Regions {
			calls := 0
			tracker.Update([]region.Region[int]{piece}, history.TransitionFuncs[int, int]{
				Update: func(overlap []region.Region[int], value *int, containing region.Region[int]) {
					calls++
					require.Equal(t, entry.Value, *value)
					require.Equal(t, piece.Volume(), region.TotalVolume(overlap))
				},
			})
			require.Equal(t, 1, calls)
		}
	}
}

func randomRegion(rng *rand.Rand) region.Region[int] {
	x0, y0 := rng.Intn(8), rng.Intn(8)
	x1, y1 := x0+1+rng.Intn(8-x0), y0+1+rng.Intn(8-y0)
	return rect(x0, y0, x1, y1)
}

func TestCoverageMatchesModel(t *testing.T) {
	const (
		modeReplace = iota
		modeClear
		modeIgnore
	)

	rng := rand.New(rand.NewSource(2024))
	tracker := newTracker(t, rect(0, 0, 8, 8))
	model := make(map[[2]int]int)

	for step := 0; step < 400; step++ {
		var regions []region.Region[int]
		for i := 0; i < 1+rng.Intn(3); i++ {
			regions = append(regions, randomRegion(rng))
		}

		touched := make(map[[2]int]struct{})
		for _, r := range regions {
			for x := r.Start(0); x < r.End(0); x++ {
				for y := r.Start(1); y < r.End(1); y++ {
					touched[[2]int{x, y}] = struct{}{}
				}
			}
		}

		if rng.Intn(4) == 0 {
			reported := make(map[[2]int]int)
			tracker.Update(regions, history.TransitionFuncs[int, int]{
				Update: func(overlap []region.Region[int], value *int, containing region.Region[int]) {
					for _, piece := range overlap {
						require.True(t, containing.Contains(piece))
						for x := piece.Start(0); x < piece.End(0); x++ {
							for y := piece.Start(1); y < piece.End(1); y++ {
								cell := [2]int{x, y}
								reported[cell]++
								require.Equal(t, model[cell], *value)
							}
						}
					}
				},
			})

			for cell := range touched {
				_, tracked := model[cell]
				if tracked {
					require.Equal(t, 1, reported[cell])
				} else {
					require.Zero(t, reported[cell])
				}
			}
			continue
		}

		mode := rng.Intn(3)
		value := step
		tracker.Override(regions, history.TransitionFuncs[int, int]{
			Override: func(overlap []region.Region[int], current int, containing region.Region[int]) history.Action[int] {
				switch mode {
				case modeReplace:
					return history.Update(value)
				case modeClear:
					return history.Clear[int]()
				default:
					return history.Ignore[int]()
				}
			},
			Create: func(r region.Region[int]) int {
				return value
			},
		})

		for cell := range touched {
			_, tracked := model[cell]
			switch {
			case !tracked:
				model[cell] = value
			case mode == modeReplace:
				model[cell] = value
			case mode == modeClear:
				delete(model, cell)
			}
		}

		require.NoError(t, tracker.Validate())
		require.Equal(t, uint64(len(model)), tracker.TrackedVolume())

		seen := make(map[[2]int]int)
		for _, entry := range visibleEntries(t, tracker) {
			for _, piece := range entry.Regions {
				for x := piece.Start(0); x < piece.End(0); x++ {
					for y := piece.Start(1); y < piece.End(1); y++ {
						cell := [2]int{x, y}
						_, duplicate := seen[cell]
						require.False(t, duplicate)
						seen[cell] = entry.Value
					}
				}
			}
		}
		require.Equal(t, model, seen)
	}
}

func TestReset(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(2, 4)}, replaceWith(2))

	cleared := make(map[int]uint64)
	tracker.Reset(history.TransitionFuncs[int, int]{
		Clear: func(overlap []region.Region[int], value int, containing region.Region[int]) {
			cleared[value] += region.TotalVolume(overlap)
		},
	})

	require.Equal(t, map[int]uint64{1: 8, 2: 2}, cleared)
	require.True(t, tracker.IsEmpty())
	require.NoError(t, tracker.Validate())

	tracker.Override([]region.Region[int]{region.Span(0, 3)}, replaceWith(3))
	require.Equal(t, 1, tracker.EntryCount())

	tracker.Reset(nil)
	require.True(t, tracker.IsEmpty())
}

func TestStatistics(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 100))
	tracker.Override([]region.Region[int]{region.Span(0, 50)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(40, 60)}, replaceWith(2))
	tracker.Override([]region.Region[int]{region.Span(0, 5)}, clearAll())

	var stats synctrack.Statistics
	tracker.AddStatistics(&stats)
	require.Equal(t, synctrack.Statistics{
		TrackerCount:  1,
		EntryCount:    3,
		TrackedVolume: 55,
		DomainVolume:  100,
	}, stats)

	var detailed synctrack.DetailedStatistics
	detailed.Clear()
	tracker.AddDetailedStatistics(&detailed)
	require.Equal(t, synctrack.DetailedStatistics{
		Statistics:         stats,
		ClearedMarkerCount: 1,
		EntryVolumeMin:     10,
		EntryVolumeMax:     35,
	}, detailed)
}

func TestJsonData(t *testing.T) {
	tracker := newTracker(t, region.Span(0, 10))
	tracker.Override([]region.Region[int]{region.Span(0, 10)}, replaceWith(1))
	tracker.Override([]region.Region[int]{region.Span(4, 6)}, replaceWith(2))

	writer := jwriter.NewWriter()
	obj := writer.Object()
	tracker.JsonData(&obj, func(json *jwriter.ObjectState, value int) {
		json.Name("Value").Int(value)
	})
	obj.End()

	require.JSONEq(t, `{
		"Domain": "[0..10)",
		"EntryCount": 2,
		"ClearedMarkerCount": 0,
		"TrackedVolume": 10,
		"Entries": [
			{"Region": "[4..6)", "ActiveVolume": 2, "Visible": ["[4..6)"], "Value": 2},
			{"Region": "[0..10)", "ActiveVolume": 8, "Visible": ["[6..10)", "[0..4)"], "Value": 1}
		]
	}`, string(writer.Bytes()))
}
