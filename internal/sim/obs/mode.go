package obs

import (
	"fmt"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// Mode selects how observations are assembled. The enumeration is closed;
// requesting anything else is a fatal configuration error at construction,
// never a per-step failure.
type Mode int

const (
	// ModeNone returns an empty record. Used for simulation-only control
	// loops (e.g. MPC) that never read observations.
	ModeNone Mode = iota
	// ModeState flattens the state-dict record into one numeric vector.
	ModeState
	// ModeStateDict returns agent proprioception plus task extra fields
	// as a nested record.
	ModeStateDict
	// ModeRGBD captures per-camera image channels alongside the
	// state-dict branches.
	ModeRGBD
	// ModePointCloud fuses per-camera point sets into one world-frame
	// point cloud.
	ModePointCloud
	// ModeRGBDRobotSeg is ModeRGBD with actor segmentation forced on and
	// post-processed into an agent-only mask.
	ModeRGBDRobotSeg
	// ModePointCloudRobotSeg is the pointcloud analogue of
	// ModeRGBDRobotSeg.
	ModePointCloudRobotSeg

	modeCount // sentinel, keep last
)

var modeNames = map[Mode]string{
	ModeNone:               "none",
	ModeState:              "state",
	ModeStateDict:          "state_dict",
	ModeRGBD:               "rgbd",
	ModePointCloud:         "pointcloud",
	ModeRGBDRobotSeg:       "rgbd_robot_seg",
	ModePointCloudRobotSeg: "pointcloud_robot_seg",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a mode name from configuration to its enum value.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, &UnsupportedModeError{Name: name}
}

// UnsupportedModeError reports an observation mode outside the closed set,
// or a mode that the renderer backend cannot serve.
type UnsupportedModeError struct {
	Name   string
	Detail string
}

func (e *UnsupportedModeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported observation mode %q", e.Name)
	}
	return fmt.Sprintf("observation mode %q: %s", e.Name, e.Detail)
}

// visual reports whether the mode captures camera sensors at all.
func (m Mode) visual() bool {
	switch m {
	case ModeRGBD, ModePointCloud, ModeRGBDRobotSeg, ModePointCloudRobotSeg:
		return true
	}
	return false
}

// pointCloudBased reports whether the mode fuses point clouds.
func (m Mode) pointCloudBased() bool {
	return m == ModePointCloud || m == ModePointCloudRobotSeg
}

// robotSeg reports whether the mode derives an agent-only segmentation
// mask, which forces actor segmentation capture on.
func (m Mode) robotSeg() bool {
	return m == ModeRGBDRobotSeg || m == ModePointCloudRobotSeg
}

// CheckBackend validates a mode against a renderer backend. The policy is
// deliberately asymmetric: rgbd against a color-only backend degrades by
// silently dropping unavailable channels, while pointcloud (which cannot
// exist without the position channel) and the robot-seg variants (which
// cannot exist without segmentation) are rejected outright.
func CheckBackend(m Mode, b engine.Backend) error {
	if !b.ColorOnly() {
		return nil
	}
	if m.pointCloudBased() {
		return &UnsupportedModeError{
			Name:   m.String(),
			Detail: fmt.Sprintf("%s backend does not render the position channel", b),
		}
	}
	if m.robotSeg() {
		return &UnsupportedModeError{
			Name:   m.String(),
			Detail: fmt.Sprintf("%s backend does not render segmentation", b),
		}
	}
	return nil
}
