package commissioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cpuinfoTwoProcessors = "processor\t: 0\n" +
	"vendor_id\t: GenuineIntel\n" +
	"model name\t: Intel(R) Core(TM) i5 CPU\n" +
	"flags\t\t: fpu vme de pse\n" +
	"\n" +
	"processor\t: 1\n" +
	"vendor_id\t: GenuineIntel\n" +
	"model name\t: Intel(R) Core(TM) i5 CPU\n" +
	"flags\t\t: fpu vme de pse\n"

func TestCountProcessors(t *testing.T) {
	assert.Equal(t, 2, CountProcessors([]byte(cpuinfoTwoProcessors)))
	assert.Equal(t, 0, CountProcessors(nil))
}

func TestParseCPUInfo(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, ParseCPUInfo(ctx, te.env, &te.node, []byte(cpuinfoTwoProcessors), 0))
	assert.Equal(t, 2, te.reload(t).CPUCount)

	require.NoError(t, ParseCPUInfo(ctx, te.env, &te.node, []byte("processor\t: 0\n"), 1))
	assert.Equal(t, 2, te.reload(t).CPUCount)
}
