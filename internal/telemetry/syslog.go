package telemetry

import "math/rand"

// sysLogLines are plausible onboard-computer log lines published on the
// sys_logs flow to give demo datasets a realistic string channel.
var sysLogLines = []string{
	"kernel: [123456.789012] Initializing cgroup subsys cpuset",
	"kernel: [123456.789012] EXT4-fs (sda1): re-mounted. Opts: (null)",
	"kernel: [123456.789012] eth0: Link is Up - 100Mbps Full Duplex",
	"kernel: [123456.789012] random: crng init done",
	"sshd[12345]: Server listening on 0.0.0.0 port 22.",
	"systemd[1]: Started Network Time Synchronization.",
	"systemd[1]: Reached target Multi-User System.",
	"systemd[1]: Starting Load Kernel Modules...",
	"systemd[1]: Started udev Kernel Device Manager.",
	"systemd-logind[6789]: Watching system buttons on /dev/input/event0 (Lid Switch)",
	"NetworkManager[2345]: <info>  [1234567890.123] manager: NetworkManager state is now CONNECTED_GLOBAL",
	"avahi-daemon[7890]: Server startup complete. Host name is rover.local. Local service cookie is 123456789.",
	"ntpd[2345]: Soliciting pool server 192.168.1.1",
	"ntpd[2345]: ntpd: time slew +0.001234 s",
	"rsyslogd: rsyslogd was HUPed",
}

// SysLogGenerator draws occasional system log lines with a seeded RNG so a
// run's sys_logs flow is reproducible.
type SysLogGenerator struct {
	rng    *rand.Rand
	chance float64
}

// NewSysLogGenerator creates a generator emitting a line with the given
// probability per draw.
func NewSysLogGenerator(seed int64, chance float64) *SysLogGenerator {
	return &SysLogGenerator{
		rng:    rand.New(rand.NewSource(seed)),
		chance: chance,
	}
}

// Draw returns a log line when the random draw fires.
func (g *SysLogGenerator) Draw() (string, bool) {
	if g.rng.Float64() >= g.chance {
		return "", false
	}
	return sysLogLines[g.rng.Intn(len(sysLogLines))], true
}
