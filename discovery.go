package armlink

import (
	"context"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

// DiscoveredArm is a serial port that responded to a servo bus scan.
type DiscoveredArm struct {
	Port     string
	ServoIDs []int
}

// EnumerateSerialPorts lists the serial ports on the system.
func EnumerateSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}
	paths := make([]string, 0, len(ports))
	for _, port := range ports {
		paths = append(paths, port.Name)
	}
	return paths, nil
}

// ProbeSerialPort opens port as an STS bus and scans the ID range, returning
// the IDs that answered in ascending bus order.
func ProbeSerialPort(ctx context.Context, port string, idLo, idHi int) ([]int, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: defaultBaudrate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", port)
	}
	defer bus.Close()

	found, err := bus.Scan(ctx, idLo, idHi)
	if err != nil {
		return nil, errors.Wrapf(err, "scan failed on %s", port)
	}
	ids := make([]int, 0, len(found))
	for _, servo := range found {
		ids = append(ids, servo.ID)
	}
	return ids, nil
}

// DiscoverArms probes every serial port on the system for servo buses with
// at least minServos responding in the ID range. Ports that fail to open or
// scan are skipped.
func DiscoverArms(ctx context.Context, idLo, idHi, minServos int, logger logging.Logger) []DiscoveredArm {
	ports, err := EnumerateSerialPorts()
	if err != nil {
		logger.Warnf("serial port enumeration failed: %v", err)
		return nil
	}

	var arms []DiscoveredArm
	for _, port := range ports {
		ids, err := ProbeSerialPort(ctx, port, idLo, idHi)
		if err != nil {
			logger.Debugf("skipping %s: %v", port, err)
			continue
		}
		if len(ids) < minServos {
			logger.Debugf("skipping %s: only %d servos responded", port, len(ids))
			continue
		}
		logger.Infof("found arm on %s with servo IDs %v", port, ids)
		arms = append(arms, DiscoveredArm{Port: port, ServoIDs: ids})
	}
	return arms
}
