package commissioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lldpOutput = `
<?xml version="1.0" encoding="UTF-8"?>
<lldp label="LLDP neighbors">
  <interface label="Interface" name="eth0" via="LLDP">
    <chassis label="Chassis">
      <id label="ChassisID" type="mac">00:11:22:33:44:55</id>
      <name label="SysName">switch-a</name>
    </chassis>
  </interface>
  <interface label="Interface" name="eth1" via="LLDP">
    <chassis label="Chassis">
      <id label="ChassisID" type="local">switch-b</id>
    </chassis>
  </interface>
  <interface label="Interface" name="eth2" via="LLDP">
    <chassis label="Chassis">
      <id label="ChassisID" type="mac">AA:BB:CC:DD:EE:FF</id>
    </chassis>
  </interface>
</lldp>
`

func TestExtractRouterMACs(t *testing.T) {
	routers, err := ExtractRouterMACs([]byte(lldpOutput))
	require.NoError(t, err)
	assert.Equal(t, []string{"00:11:22:33:44:55", "aa:bb:cc:dd:ee:ff"}, routers)

	routers, err = ExtractRouterMACs([]byte(`<lldp label="LLDP neighbors"/>`))
	require.NoError(t, err)
	assert.Empty(t, routers)
}

func TestUpdateRouters(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, UpdateRouters(ctx, te.env, &te.node, []byte(lldpOutput), 0))
	assert.Equal(t, []string{"00:11:22:33:44:55", "aa:bb:cc:dd:ee:ff"}, te.reload(t).Routers)

	require.NoError(t, UpdateRouters(ctx, te.env, &te.node, nil, 0))
	assert.Len(t, te.reload(t).Routers, 2)

	require.NoError(t, UpdateRouters(ctx, te.env, &te.node, []byte("<lldp"), 0))
	assert.Contains(t, te.logs.String(), "Invalid lldp data")
	assert.Len(t, te.reload(t).Routers, 2)

	require.NoError(t, UpdateRouters(ctx, te.env, &te.node, []byte("<lldp/>"), 0))
	assert.Empty(t, te.reload(t).Routers)
}
