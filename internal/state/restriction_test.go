package state_test

import (
	"testing"

	"github.com/myrjola/casefile/internal/location"
	"github.com/myrjola/casefile/internal/state"
	"github.com/stretchr/testify/require"
)

func TestCheckLocation(t *testing.T) {
	set := map[string]bool{"has_key": true}
	view := state.View{Chapter: "1", Slot: state.Morning, Unlocked: true, HasFlag: func(f string) bool { return set[f] }}

	tests := []struct {
		name     string
		loc      location.Location
		view     func(v state.View) state.View
		wantKind state.RestrictionKind
		reason   string
	}{
		{
			name: "open",
			loc:  location.Location{ID: "street"},
		},
		{
			name:     "locked",
			loc:      location.Location{ID: "cellar", Name: "Cellar"},
			view:     func(v state.View) state.View { v.Unlocked = false; return v },
			wantKind: state.RestrictionLocked,
			reason:   "locked: Cellar is locked",
		},
		{
			name:     "wrong chapter",
			loc:      location.Location{ID: "docks", Chapters: []string{"2", "3"}},
			wantKind: state.RestrictionChapter,
			reason:   "chapter: docks is not reachable in chapter 1",
		},
		{
			name:     "outside time window",
			loc:      location.Location{ID: "opera", Name: "Opera", OpenSlots: []string{"evening", "night"}},
			wantKind: state.RestrictionTimeWindow,
			reason:   "time window: Opera is only open in the evening or night, it is morning",
		},
		{
			name: "inside time window",
			loc:  location.Location{ID: "opera", OpenSlots: []string{"evening"}},
			view: func(v state.View) state.View { v.Slot = state.Evening; return v },
		},
		{
			name:     "missing required flag",
			loc:      location.Location{ID: "vault", RequiredFlags: []string{"has_key", "has_code"}},
			wantKind: state.RestrictionRequiredFlag,
			reason:   "required flag: vault requires has_code",
		},
		{
			name:     "forbidden flag set",
			loc:      location.Location{ID: "shop", ForbiddenFlags: []string{"has_key"}},
			wantKind: state.RestrictionForbiddenFlag,
			reason:   "forbidden flag: shop is closed since has_key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := view
			if tt.view != nil {
				v = tt.view(v)
			}
			got := state.CheckLocation(tt.loc, v)
			if tt.wantKind == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.wantKind, got.Kind)
			require.Equal(t, tt.loc.ID, got.Location)
			require.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestParsePhaseAndTimeSlot(t *testing.T) {
	p, err := state.ParsePhase("cutscene")
	require.NoError(t, err)
	require.Equal(t, state.PhaseCutscene, p)
	_, err = state.ParsePhase("lunch")
	require.ErrorIs(t, err, state.ErrUnknownPhase)

	slot, err := state.ParseTimeSlot("night")
	require.NoError(t, err)
	require.Equal(t, state.Night, slot)
	_, err = state.ParseTimeSlot("noon")
	require.ErrorIs(t, err, state.ErrUnknownTimeSlot)

	require.Equal(t, []string{"morning", "afternoon", "evening", "night"}, state.TimeSlotNames())
	require.Equal(t, "unknown", state.Phase(42).String())
}
