package couchbase

import (
	"testing"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name string `json:"name"`
	Cas  `json:"-"`
}

func TestNewCouchbaseRequiresHandles(t *testing.T) {
	_, err := NewCouchbase[doc](nil, nil, nil)
	require.Error(t, err)

	_, err = NewCouchbase[doc](&gocb.Cluster{}, nil, &gocb.Collection{})
	require.Error(t, err)
}

func TestCasIsSetThroughPointer(t *testing.T) {
	var d doc

	s, ok := any(&d).(CasSetter)
	require.True(t, ok)

	s.SetCas(42)
	assert.Equal(t, uint64(42), d.GetCas())

	_, ok = any(d).(CasSetter)
	assert.False(t, ok)
}
