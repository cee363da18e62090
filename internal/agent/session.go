package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

func bootIDFromIdentity(identity string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(identity)).String()
}

// bootSessionID is stable for one host boot and changes after a reboot, so
// the server can tell a restarted agent from a rebooted machine.
func bootSessionID() string {
	bootTime, err := host.BootTime()
	if err != nil || bootTime == 0 {
		return uuid.NewString()
	}
	hostname, _ := os.Hostname()
	return bootIDFromIdentity(fmt.Sprintf("%s:%d", strings.TrimSpace(hostname), bootTime))
}
