package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-indust/typecache/internal/classcache"
)

func TestNarrower_Narrow(t *testing.T) {
	c := seedHierarchy(t)

	tests := []struct {
		name       string
		assignment classcache.SensorAssignment
		want       []string
	}{
		{
			name:       "direct name",
			assignment: classcache.SensorAssignment{ClassName: "a.Base"},
			want:       []string{"a.Base"},
		},
		{
			name:       "direct pattern skips stubs",
			assignment: classcache.SensorAssignment{ClassName: "a.P*"},
			want:       []string{"a.Plain"},
		},
		{
			name:       "interface includes subclasses and sub-interfaces",
			assignment: classcache.SensorAssignment{ClassName: "a.Api", Interface: true},
			want:       []string{"a.Base", "a.Impl", "a.Other"},
		},
		{
			name:       "sub-interface only",
			assignment: classcache.SensorAssignment{ClassName: "a.SubApi", Interface: true},
			want:       []string{"a.Other"},
		},
		{
			name:       "superclass stub yields initialized subclasses",
			assignment: classcache.SensorAssignment{ClassName: "a.Parent", Superclass: true},
			want:       []string{"a.Child", "a.GrandChild"},
		},
		{
			name:       "superclass excludes itself",
			assignment: classcache.SensorAssignment{ClassName: "a.Base", Superclass: true},
			want:       []string{"a.Impl"},
		},
		{
			name:       "annotation on class and interface",
			assignment: classcache.SensorAssignment{ClassName: "*", Annotation: "a.Marker"},
			want:       []string{"a.Base", "a.Impl", "a.Other", "a.Tagged", "a.TaggedChild"},
		},
		{
			name:       "annotation on method",
			assignment: classcache.SensorAssignment{ClassName: "*", Annotation: "a.Traced"},
			want:       []string{"a.Plain"},
		},
		{
			name:       "unknown name",
			assignment: classcache.SensorAssignment{ClassName: "b.Missing", Interface: true},
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Narrower{}.Narrow(c, &tt.assignment)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, fqns(got))
		})
	}
}

func TestNarrower_EmptyRootsTakeNoLock(t *testing.T) {
	c := seedHierarchy(t)
	before := c.LockStats()

	got := Narrower{}.Narrow(c, &classcache.SensorAssignment{ClassName: "b.*", Superclass: true})

	assert.Empty(t, got)
	// One read lock for the lookup itself, none for the walk.
	assert.Equal(t, before.ReadLocks+1, c.LockStats().ReadLocks)
}
