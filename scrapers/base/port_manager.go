package base

import (
	"errors"
	"fmt"
	"sync"
)

// driverPortSlots is how many ChromeDriver processes may run at once when
// the selenium backend is used.
const driverPortSlots = 16

// ErrNoFreePort means every driver port slot is taken.
var ErrNoFreePort = errors.New("no free chromedriver port")

// PortManager leases local ports to ChromeDriver processes. A scrape run and
// a scheduled run can both hold a selenium session, so each one gets its own
// port out of a fixed window.
type PortManager struct {
	mu    sync.Mutex
	first int
	taken []bool
}

var driverPorts struct {
	once sync.Once
	pm   *PortManager
}

// SharedDriverPorts returns the process-wide lease table. The window is
// fixed by the first caller.
func SharedDriverPorts(firstPort int) *PortManager {
	driverPorts.once.Do(func() {
		driverPorts.pm = NewPortManager(firstPort, driverPortSlots)
	})
	return driverPorts.pm
}

// NewPortManager leases ports from [firstPort, firstPort+slots).
func NewPortManager(firstPort, slots int) *PortManager {
	return &PortManager{first: firstPort, taken: make([]bool, slots)}
}

// GetPort leases the lowest free port.
func (pm *PortManager) GetPort() (int, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i, busy := range pm.taken {
		if !busy {
			pm.taken[i] = true
			return pm.first + i, nil
		}
	}
	return 0, fmt.Errorf("%w in %d-%d", ErrNoFreePort, pm.first, pm.first+len(pm.taken)-1)
}

// ReleasePort returns a lease. Unknown ports are a no-op.
func (pm *PortManager) ReleasePort(port int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if i := port - pm.first; i >= 0 && i < len(pm.taken) {
		pm.taken[i] = false
	}
}

func (pm *PortManager) InUse() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	n := 0
	for _, busy := range pm.taken {
		if busy {
			n++
		}
	}
	return n
}
