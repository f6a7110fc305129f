package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorKind_IsValid(t *testing.T) {
	assert.True(t, KindScan.IsValid())
	assert.True(t, KindTransform.IsValid())
	assert.True(t, KindSink.IsValid())
	assert.False(t, OperatorKind("join").IsValid())
	assert.Equal(t, "sink", KindSink.String())
}

func TestResources_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       *Resources
		wantErr bool
	}{
		{name: "nil", r: nil},
		{name: "zero", r: &Resources{}},
		{name: "valid", r: &Resources{CPUs: 0.5, GPUs: 1, MemoryMB: 512, Concurrency: 4}},
		{name: "negative cpus", r: &Resources{CPUs: -1}, wantErr: true},
		{name: "negative gpus", r: &Resources{GPUs: -1}, wantErr: true},
		{name: "negative memory", r: &Resources{MemoryMB: -1}, wantErr: true},
		{name: "negative concurrency", r: &Resources{Concurrency: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResources_String(t *testing.T) {
	var unset *Resources
	assert.Equal(t, "<unset>", unset.String())

	r := &Resources{CPUs: 1.5, MemoryMB: 256}
	assert.Equal(t, "cpus=1.5 gpus=0 memory_mb=256 concurrency=0", r.String())

	r.Fused, r.FusionHead, r.Optimized = true, 3, true
	assert.Equal(t, "cpus=1.5 gpus=0 memory_mb=256 concurrency=0 fused=3 optimized", r.String())
}

func TestResources_Clone(t *testing.T) {
	var unset *Resources
	assert.Nil(t, unset.Clone())

	r := &Resources{CPUs: 2}
	c := r.Clone()
	c.CPUs = 4
	assert.Equal(t, 2.0, r.CPUs)
}

func TestClusterCaps_Clamp(t *testing.T) {
	caps := ClusterCaps{MaxCPUs: 2, MaxMemoryMB: 1024}

	r := &Resources{CPUs: 4, GPUs: 8, MemoryMB: 512}
	assert.False(t, caps.Within(r))
	assert.Equal(t, 4.0, r.CPUs, "Within does not mutate")

	assert.True(t, caps.Clamp(r))
	assert.Equal(t, &Resources{CPUs: 2, GPUs: 8, MemoryMB: 512}, r)
	assert.True(t, caps.Within(r))
	assert.False(t, caps.Clamp(r))

	assert.NoError(t, caps.Validate())
	assert.ErrorIs(t, ClusterCaps{MaxGPUs: -1}.Validate(), ErrConfiguration)
}

func TestClusterCaps_ClampUnboundedConcurrency(t *testing.T) {
	caps := ClusterCaps{MaxConcurrency: 2}

	assert.False(t, caps.Within(nil))
	assert.False(t, caps.Within(&Resources{}), "zero concurrency is unbounded")
	assert.True(t, caps.Within(&Resources{Concurrency: 1}))

	r := &Resources{CPUs: 1}
	assert.True(t, caps.Clamp(r))
	assert.Equal(t, 2, r.Concurrency)

	assert.True(t, ClusterCaps{}.Within(&Resources{}))
	assert.True(t, ClusterCaps{}.Within(nil))
}
