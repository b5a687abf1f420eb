package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPoolCollector_DescribesEveryStat(t *testing.T) {
	c := NewPoolCollector(nil)

	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	assert.Len(t, ch, len(c.stats))
	assert.Equal(t, 9, len(c.stats))
}

func TestPoolCollector_NilPoolCollectsNothing(t *testing.T) {
	assert.Equal(t, 0, testutil.CollectAndCount(NewPoolCollector(nil)))
}
