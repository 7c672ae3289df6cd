package commissioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lshwTwoProcessors = `<?xml version="1.0" standalone="yes" ?>
<list>
<node id="machine" class="system">
  <node id="core" class="bus">
    <node id="cpu:0" class="processor">
      <size units="Hz">1800000000</size>
      <capacity units="Hz">2400000000</capacity>
    </node>
    <node id="cpu:1" class="processor">
      <size units="Hz">1600000000</size>
    </node>
  </node>
</node>
</list>`

const lshwThreadedProcessors = `<node id="machine" class="system">
  <node id="core" class="bus">
    <node id="cpu:0" class="processor">
      <capacity units="Hz">3000000000</capacity>
      <configuration>
        <setting id="cores" value="2" />
        <setting id="enabledcores" value="2" />
        <setting id="threads" value="4" />
      </configuration>
    </node>
    <node id="cpu:1" class="processor">
      <size units="Hz">2000000000</size>
    </node>
    <node id="cpu:2" class="processor" disabled="true">
      <capacity units="Hz">4000000000</capacity>
      <configuration>
        <setting id="threads" value="8" />
      </configuration>
    </node>
  </node>
</node>`

const lshwMemoryBanks = `<?xml version="1.0" standalone="yes" ?>
<list>
<node id="laptop" class="system">
  <node id="core" class="bus">
    <node id="firmware" class="memory">
      <size units="bytes">131072</size>
    </node>
    <node id="cache:0" class="memory">
      <size units="bytes">32768</size>
    </node>
    <node id="memory" class="memory">
      <description>System Memory</description>
      <node id="bank:0" class="memory">
        <size units="bytes">4294967296</size>
      </node>
      <node id="bank:1" class="memory">
        <size units="bytes">2147483648</size>
      </node>
    </node>
    <node id="memory:1" class="memory">
      <node id="bank:0" class="memory">
        <size units="bytes">1073741824</size>
      </node>
      <node id="bank:1" class="memory">
        <size units="bytes">536870912</size>
      </node>
    </node>
  </node>
</node>
</list>`

const lshwMemorySlots = `<node>
  <node id="memory:0" class="memory">
    <node id="bank:0" class="memory" handle="DMI:002D">
      <size units="bytes">4294967296</size>
    </node>
    <node id="bank:1" class="memory" handle="DMI:002E">
      <size units="bytes">3221225472</size>
    </node>
  </node>
  <node id="memory:1" class="memory">
    <node id="bank:0" class="memory" handle="DMI:002F">
      <size units="bytes">536870912</size>
    </node>
  </node>
  <node id="memory:2" class="memory"></node>
</node>`

const lshwSingleBank = `<node id="machine" class="system">
  <node id="memory:0" class="memory">
    <node id="bank" class="memory">
      <size units="bytes">8589934592</size>
    </node>
  </node>
</node>`

func TestParseLSHW(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect HardwareFacts
	}{
		{"two processors", lshwTwoProcessors, HardwareFacts{CPUCount: 2, CPUSpeed: 2400}},
		{"threads and disabled processor", lshwThreadedProcessors, HardwareFacts{CPUCount: 5, CPUSpeed: 3000}},
		{"single memory node", `<node id="memory"><size>4294967296</size></node>`, HardwareFacts{Memory: 4096}},
		{"memory banks", lshwMemoryBanks, HardwareFacts{Memory: 7680}},
		{"memory slots", lshwMemorySlots, HardwareFacts{Memory: 7680}},
		{"single unnumbered bank", lshwSingleBank, HardwareFacts{Memory: 8192}},
		{"non-byte units", `<node id="memory" class="memory"><size units="MB">4096</size></node>`, HardwareFacts{}},
		{"firmware and cache", `<node><node id="firmware" class="memory"><size units="bytes">1048576</size></node><node id="cache" class="memory"><size units="bytes">1048576</size></node></node>`, HardwareFacts{}},
		{"empty tree", `<node/>`, HardwareFacts{}},
		{"partial mebibyte", `<node id="memory" class="memory"><size>1572863</size></node>`, HardwareFacts{Memory: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := ParseLSHW([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, facts)
		})
	}
}

func TestParseLSHW_Invalid(t *testing.T) {
	_, err := ParseLSHW([]byte("garbage"))
	assert.Error(t, err)
}

func TestUpdateHardwareDetails(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, UpdateHardwareDetails(ctx, te.env, &te.node, []byte(lshwThreadedProcessors), 0))
	node := te.reload(t)
	assert.Equal(t, 5, node.CPUCount)
	assert.Equal(t, 3000, node.CPUSpeed)
	assert.Equal(t, 5, te.node.CPUCount)
}

func TestUpdateHardwareDetails_LeavesFactsOnBadInput(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, UpdateHardwareDetails(ctx, te.env, &te.node, []byte(`<node id="memory"><size>4294967296</size></node>`), 0))

	require.NoError(t, UpdateHardwareDetails(ctx, te.env, &te.node, []byte("garbage"), 0))
	assert.Contains(t, te.logs.String(), "Invalid lshw data")
	assert.Equal(t, int64(4096), te.reload(t).Memory)

	te.logs.Reset()
	require.NoError(t, UpdateHardwareDetails(ctx, te.env, &te.node, []byte(lshwMemoryBanks), 1))
	assert.Empty(t, te.logs.String())
	assert.Equal(t, int64(4096), te.reload(t).Memory)
}
