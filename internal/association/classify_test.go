package association

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

func pairs(edges ...[2]uint) []entities.Association {
	out := make([]entities.Association, len(edges))
	for i, e := range edges {
		out[i] = entities.Association{ID: uint(i + 1), SourceID: e[0], RuncatID: e[1]}
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		edges     [][2]uint
		want      []entities.Relation
		direct    int
		ambiguous int
	}{
		{
			name:   "one to one",
			edges:  [][2]uint{{1, 10}, {2, 20}},
			want:   []entities.Relation{entities.RelationOneToOne, entities.RelationOneToOne},
			direct: 2,
		},
		{
			name:   "many to one",
			edges:  [][2]uint{{1, 10}, {2, 10}, {3, 10}},
			want:   []entities.Relation{entities.RelationManyToOne, entities.RelationManyToOne, entities.RelationManyToOne},
			direct: 1,
		},
		{
			name:      "one to many",
			edges:     [][2]uint{{1, 10}, {1, 20}},
			want:      []entities.Relation{entities.RelationOneToMany, entities.RelationOneToMany},
			ambiguous: 2,
		},
		{
			name:  "many to many chain",
			edges: [][2]uint{{1, 10}, {2, 10}, {2, 20}, {3, 20}},
			want: []entities.Relation{
				entities.RelationManyToMany, entities.RelationManyToMany,
				entities.RelationManyToMany, entities.RelationManyToMany,
			},
			ambiguous: 4,
		},
		{
			name:  "mixed components",
			edges: [][2]uint{{1, 10}, {2, 20}, {3, 20}, {4, 30}, {4, 40}},
			want: []entities.Relation{
				entities.RelationOneToOne,
				entities.RelationManyToOne, entities.RelationManyToOne,
				entities.RelationOneToMany, entities.RelationOneToMany,
			},
			direct:    2,
			ambiguous: 2,
		},
		{
			// The closer match does not win.
			name:      "close and far candidate",
			edges:     [][2]uint{{1, 10}, {1, 11}},
			want:      []entities.Relation{entities.RelationOneToMany, entities.RelationOneToMany},
			ambiguous: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rows := pairs(tt.edges...)
			if tt.name == "close and far candidate" {
				rows[0].R, rows[1].R = 0.1, 3.5
			}
			got := Classify(rows)

			require.Len(t, got.Relations, len(rows))
			for i, row := range rows {
				assert.Equal(t, tt.want[i], got.Relations[row.ID], "pair %v", tt.edges[i])
			}
			assert.Len(t, got.Direct, tt.direct)
			assert.Len(t, got.Ambiguous, tt.ambiguous)
			for _, a := range got.Ambiguous {
				assert.NotEqual(t, entities.RelationNone, a.Relation)
			}
		})
	}
}

func TestClassifyEmpty(t *testing.T) {
	t.Parallel()

	got := Classify(nil)
	assert.Empty(t, got.Direct)
	assert.Empty(t, got.Ambiguous)
	assert.Empty(t, got.Relations)
}
