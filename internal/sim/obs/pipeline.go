package obs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/arenaworks/simarena/internal/sim/camera"
	"github.com/arenaworks/simarena/internal/sim/engine"
)

// AgentSource is the slice of the agent abstraction the pipeline needs:
// proprioceptive observation and the agent's kinematic body ids for
// segmentation masking.
type AgentSource interface {
	Proprioception() *Record
	KinematicIDs() []uint32
}

// Pipeline assembles observations for one scene generation. It holds
// non-owning references to the scene and rig and must be rebuilt after a
// reconfigure.
type Pipeline struct {
	mode  Mode
	scene engine.Scene
	rig   *camera.Rig
	agent AgentSource
	extra func() *Record
}

// NewPipeline validates the mode against the closed enumeration and the
// rig's backend capability, failing fast at build time rather than on the
// first observation. extra may be nil; it defaults to an empty record.
func NewPipeline(mode Mode, scene engine.Scene, rig *camera.Rig, agent AgentSource, extra func() *Record) (*Pipeline, error) {
	if handlers[mode] == nil {
		return nil, &UnsupportedModeError{Name: mode.String()}
	}
	if mode.visual() {
		if rig == nil {
			return nil, fmt.Errorf("observation mode %s requires a sensor rig", mode)
		}
		if err := CheckBackend(mode, rig.Backend()); err != nil {
			return nil, err
		}
	}
	if extra == nil {
		extra = NewRecord
	}
	return &Pipeline{mode: mode, scene: scene, rig: rig, agent: agent, extra: extra}, nil
}

func (p *Pipeline) Mode() Mode { return p.mode }

// Observe assembles one observation under the pipeline's mode. For a
// fully configured pipeline this never fails due to mode dispatch; the
// handler table covers the whole enumeration.
func (p *Pipeline) Observe() (Value, error) {
	h := handlers[p.mode]
	if h == nil {
		return nil, &UnsupportedModeError{Name: p.mode.String()}
	}
	return h(p)
}

// handlers is the exhaustive mode dispatch table. Indexed by Mode; the
// pipeline test asserts every mode below modeCount has an entry.
var handlers = [modeCount]func(*Pipeline) (Value, error){
	ModeNone:               observeNone,
	ModeState:              observeState,
	ModeStateDict:          observeStateDict,
	ModeRGBD:               observeRGBD,
	ModePointCloud:         observePointCloud,
	ModeRGBDRobotSeg:       observeRGBDRobotSeg,
	ModePointCloudRobotSeg: observePointCloudRobotSeg,
}

func observeNone(p *Pipeline) (Value, error) {
	return NewRecord(), nil
}

func (p *Pipeline) stateDict() *Record {
	return NewRecord().
		Set("agent", p.agent.Proprioception()).
		Set("extra", p.extra())
}

func observeStateDict(p *Pipeline) (Value, error) {
	return p.stateDict(), nil
}

func observeState(p *Pipeline) (Value, error) {
	return Flatten(p.stateDict())
}

// captureImages syncs render state, captures every camera, and returns a
// record keyed by sensor name. Each camera contributes its effective
// channel set (requested ∩ backend-supported); forceSeg additionally
// captures actor segmentation, which backend compatibility checks have
// already guaranteed to exist.
func (p *Pipeline) captureImages(forceSeg bool) (*Record, error) {
	p.scene.UpdateRender()
	p.rig.CaptureAll()

	images := NewRecord()
	for _, cam := range p.rig.Cameras() {
		channels := cam.Channels()
		if forceSeg && !cam.HasChannel(engine.ChannelSegmentation) {
			channels = append(channels, engine.ChannelSegmentation)
		}

		sensor := cam.Sensor()
		camRec := NewRecord()
		for _, ch := range channels {
			switch camera.ChannelDtype(ch) {
			case camera.DtypeFloat32:
				data, err := sensor.FloatTexture(ch)
				if err != nil {
					return nil, fmt.Errorf("camera %s channel %s: %w", cam.Name(), ch, err)
				}
				camRec.Set(ch.String(), &FloatImage{
					Width:    sensor.Width(),
					Height:   sensor.Height(),
					Channels: 4,
					Data:     data,
				})
			case camera.DtypeUint32:
				data, err := sensor.Uint32Texture(ch)
				if err != nil {
					return nil, fmt.Errorf("camera %s channel %s: %w", cam.Name(), ch, err)
				}
				camRec.Set(ch.String(), &UintImage{
					Width:  sensor.Width(),
					Height: sensor.Height(),
					Data:   data,
				})
			}
		}

		intr := sensor.IntrinsicMatrix()
		extr := sensor.ExtrinsicMatrix()
		camRec.Set("camera_intrinsic", &Matrix{M: matrixFromRowMajor(3, 3, intr[:])})
		camRec.Set("camera_extrinsic", &Matrix{M: matrixFromRowMajor(4, 4, extr[:])})

		images.Set(cam.Name(), camRec)
	}
	return images, nil
}

func (p *Pipeline) observeRGBDBase(forceSeg bool) (*Record, error) {
	images, err := p.captureImages(forceSeg)
	if err != nil {
		return nil, err
	}
	return NewRecord().
		Set("image", images).
		Set("agent", p.agent.Proprioception()).
		Set("extra", p.extra()), nil
}

func observeRGBD(p *Pipeline) (Value, error) {
	return p.observeRGBDBase(false)
}

func observeRGBDRobotSeg(p *Pipeline) (Value, error) {
	rec, err := p.observeRGBDBase(true)
	if err != nil {
		return nil, err
	}
	ids := p.agent.KinematicIDs()

	imagesVal, _ := rec.Get("image")
	images := imagesVal.(*Record)
	for _, name := range images.Keys() {
		camVal, _ := images.Get(name)
		camRec := camVal.(*Record)
		rawVal, ok := camRec.Get(engine.ChannelSegmentation.String())
		if !ok {
			return nil, fmt.Errorf("camera %s: segmentation channel missing for robot-seg mode", name)
		}
		camRec.Delete(engine.ChannelSegmentation.String())
		camRec.Set("robot_seg", RobotSegImage(rawVal.(*UintImage), ids))
	}
	return rec, nil
}

// observePointCloudBase fuses all per-camera point sets into one
// world-frame cloud. Every camera contributes Width×Height points: the
// position texture holds camera-local homogeneous coordinates which are
// pushed through the camera's model matrix. Point color rides along from
// the color texture; forceSeg also carries per-point segmentation ids.
func (p *Pipeline) observePointCloudBase(forceSeg bool) (*Record, error) {
	p.scene.UpdateRender()
	p.rig.CaptureAll()

	var xyzwParts []*mat.Dense
	var rgb Floats
	var seg Uints
	totalPoints := 0

	for _, cam := range p.rig.Cameras() {
		sensor := cam.Sensor()
		n := sensor.Width() * sensor.Height()

		posData, err := sensor.FloatTexture(engine.ChannelPosition)
		if err != nil {
			return nil, fmt.Errorf("camera %s position channel: %w", cam.Name(), err)
		}
		local := mat.NewDense(n, 4, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < 4; j++ {
				local.Set(i, j, float64(posData[i*4+j]))
			}
		}

		// world = local · Tᵀ, with T the 4×4 camera-to-world matrix.
		model := sensor.ModelMatrix()
		t := matrixFromRowMajor(4, 4, model[:])
		world := mat.NewDense(n, 4, nil)
		world.Mul(local, t.T())
		xyzwParts = append(xyzwParts, world)

		colorData, err := sensor.FloatTexture(engine.ChannelColor)
		if err != nil {
			return nil, fmt.Errorf("camera %s color channel: %w", cam.Name(), err)
		}
		for i := 0; i < n; i++ {
			rgb = append(rgb,
				float64(colorData[i*4+0]),
				float64(colorData[i*4+1]),
				float64(colorData[i*4+2]))
		}

		if forceSeg {
			segData, err := sensor.Uint32Texture(engine.ChannelSegmentation)
			if err != nil {
				return nil, fmt.Errorf("camera %s segmentation channel: %w", cam.Name(), err)
			}
			seg = append(seg, segData...)
		}
		totalPoints += n
	}

	fused := mat.NewDense(totalPoints, 4, nil)
	row := 0
	for _, part := range xyzwParts {
		r, _ := part.Dims()
		for i := 0; i < r; i++ {
			fused.SetRow(row, part.RawRowView(i))
			row++
		}
	}

	cloud := NewRecord().
		Set("xyzw", &Points{XYZW: fused}).
		Set("rgb", rgb)
	if forceSeg {
		cloud.Set(engine.ChannelSegmentation.String(), seg)
	}

	return NewRecord().
		Set("pointcloud", cloud).
		Set("agent", p.agent.Proprioception()).
		Set("extra", p.extra()), nil
}

func observePointCloud(p *Pipeline) (Value, error) {
	return p.observePointCloudBase(false)
}

func observePointCloudRobotSeg(p *Pipeline) (Value, error) {
	rec, err := p.observePointCloudBase(true)
	if err != nil {
		return nil, err
	}
	cloudVal, _ := rec.Get("pointcloud")
	cloud := cloudVal.(*Record)
	rawVal, _ := cloud.Get(engine.ChannelSegmentation.String())
	cloud.Delete(engine.ChannelSegmentation.String())
	cloud.Set("robot_seg", Uints(robotSegValues(rawVal.(Uints), p.agent.KinematicIDs())))
	return rec, nil
}

// RobotSegImage derives the agent-only mask from a raw actor-id
// segmentation image: pixels whose id belongs to the agent's kinematic
// body set keep their id, all others become zero. Shape is preserved.
func RobotSegImage(raw *UintImage, agentIDs []uint32) *UintImage {
	return &UintImage{
		Width:  raw.Width,
		Height: raw.Height,
		Data:   robotSegValues(raw.Data, agentIDs),
	}
}

func robotSegValues(raw []uint32, agentIDs []uint32) []uint32 {
	idSet := make(map[uint32]bool, len(agentIDs))
	for _, id := range agentIDs {
		idSet[id] = true
	}
	out := make([]uint32, len(raw))
	for i, id := range raw {
		if idSet[id] {
			out[i] = id
		}
	}
	return out
}
