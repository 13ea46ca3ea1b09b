// Command armdemo runs a short motion sequence against a simulated UR5e, or
// against a real servo bus when -port is given.
package main

import (
	"context"
	"flag"
	"time"

	"armlink"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
)

func main() {
	if err := realMain(); err != nil {
		panic(err)
	}
}

func realMain() error {
	port := flag.String("port", "", "serial port of a servo bus; empty runs the simulator")
	flag.Parse()

	ctx := context.Background()
	logger := logging.NewLogger("armdemo")

	cfg := armlink.DefaultUR5eConfig()
	cfg.Logger = logger

	model, err := armlink.UR5eModel()
	if err != nil {
		return err
	}

	var backend armlink.Backend
	if *port == "" {
		backend = armlink.NewSimBackend(model, 2.0, logger)
	} else {
		backend, err = armlink.NewSerialBackend(armlink.SerialConfig{
			Port:     *port,
			ServoIDs: []int{1, 2, 3, 4, 5, 6},
		}, model, logger)
		if err != nil {
			return err
		}
	}

	session := armlink.NewSession(backend, 0, logger)
	defer session.Close(ctx)

	robot, err := armlink.NewArm(cfg, session, logger)
	if err != nil {
		return err
	}

	logger.Info("moving to home position")
	reached, err := robot.GoHome(ctx, *port == "")
	if err != nil {
		return err
	}
	logger.Infof("home reached: %v", reached)

	pose, err := robot.EndEffectorPose(ctx)
	if err != nil {
		return err
	}
	logger.Infof("end effector at %v mm", pose.Point())

	logger.Info("moving end effector 50mm along +x")
	reached, err = robot.MoveLinear(ctx, r3.Vector{X: 50}, 5)
	if err != nil {
		return err
	}
	logger.Infof("linear move settled: %v", reached)

	logger.Info("nudging shoulder pan at 0.2 rad/s for one second")
	if _, err := robot.SetJointVelocity(ctx, "shoulder_pan_joint", 0.2, false); err != nil {
		return err
	}
	time.Sleep(time.Second)

	return robot.Stop(ctx)
}
