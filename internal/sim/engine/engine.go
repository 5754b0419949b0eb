// Package engine defines the surface this module consumes from a
// physics/rendering engine: scene lifecycle, rigid actors, articulations,
// camera sensors, and an optional interactive viewer.
//
// The episode controller never talks to a concrete engine directly; it holds
// these interfaces. Production deployments bind them to a real engine via an
// adapter, and tests use the deterministic in-memory engine in enginetest.
package engine

// Backend identifies the renderer backend capability class. Capability
// narrowing in the sensor rig (and the fail-fast check for pointcloud
// observations) dispatches on this.
type Backend int

const (
	// BackendRaster is a full rasterising backend: color, position and
	// segmentation channels are all available.
	BackendRaster Backend = iota
	// BackendRayTrace is a ray-tracing style backend that renders color
	// only. Depth/position and segmentation requests against it are
	// narrowed away by the sensor rig.
	BackendRayTrace
)

func (b Backend) String() string {
	switch b {
	case BackendRaster:
		return "raster"
	case BackendRayTrace:
		return "raytrace"
	default:
		return "unknown"
	}
}

// ColorOnly reports whether the backend renders only the color channel.
func (b Backend) ColorOnly() bool {
	return b == BackendRayTrace
}

// Channel is a render channel captured from a camera sensor. The set is
// closed; channel-to-dtype mapping is part of the public contract
// (Color/Position are float32, Segmentation is uint32).
type Channel int

const (
	ChannelColor Channel = iota
	ChannelPosition
	ChannelSegmentation
)

func (c Channel) String() string {
	switch c {
	case ChannelColor:
		return "Color"
	case ChannelPosition:
		return "Position"
	case ChannelSegmentation:
		return "Segmentation"
	default:
		return "unknown"
	}
}

// SceneConfig carries solver settings applied at scene creation.
type SceneConfig struct {
	Timestep         float64
	DynamicFriction  float64
	StaticFriction   float64
	Restitution      float64
	SolverIterations int
}

// ActorConfig describes a rigid actor to create in a scene.
type ActorConfig struct {
	Name   string
	Static bool
	Pose   Pose
}

// ArticulationConfig describes a multi-body kinematic chain. One link is
// created per joint; link names default to "link_<joint>".
type ArticulationConfig struct {
	Name   string
	Pose   Pose
	Joints []string
}

// CameraIntrinsics carries the projection parameters for a camera sensor.
type CameraIntrinsics struct {
	Width  int
	Height int
	FOVY   float64 // vertical field of view, radians
	Near   float64
	Far    float64
}

// Engine creates scenes and viewers. One Engine may serve several scenes
// over its lifetime, but each scene is exclusively owned by one episode
// controller at a time.
type Engine interface {
	CreateScene(cfg SceneConfig) (Scene, error)
	Backend() Backend
	CreateViewer() (Viewer, error)
}

// Scene is an engine-owned scene graph. All calls are blocking and must be
// made from a single goroutine; the scene provides no internal locking.
type Scene interface {
	// Step advances the simulation by one fixed timestep.
	Step()
	// UpdateRender syncs simulation state into the renderer. Must be
	// called before any sensor capture.
	UpdateRender()

	AddActor(cfg ActorConfig) (Actor, error)
	AddArticulation(cfg ArticulationConfig) (Articulation, error)

	// Actors returns all free rigid actors in creation order.
	// Articulation links are not included; they are reached via
	// Articulation.Links.
	Actors() []Actor
	// Articulations returns all articulations in creation order.
	Articulations() []Articulation

	AddCamera(name string, pose Pose, intr CameraIntrinsics) (Sensor, error)
	AddMountedCamera(name string, mount Actor, local Pose, intr CameraIntrinsics) (Sensor, error)

	SetAmbientLight(color Vec3)
	AddDirectionalLight(dir, color Vec3, shadow bool)

	// Destroy releases the scene and invalidates every handle obtained
	// from it. Idempotent.
	Destroy()
}

// Actor is a handle to one rigid body. Handles are non-owning references
// into the scene and are invalidated by Scene.Destroy.
type Actor interface {
	// ID is the engine-assigned body id, as written into segmentation
	// textures. Zero is reserved for background.
	ID() uint32
	Name() string
	Static() bool

	Pose() Pose
	SetPose(Pose)
	Velocity() Vec3
	SetVelocity(Vec3)
	AngularVelocity() Vec3
	SetAngularVelocity(Vec3)
}

// Articulation is a handle to one kinematic chain with DOF() joints.
type Articulation interface {
	Name() string

	RootPose() Pose
	SetRootPose(Pose)
	RootVelocity() Vec3
	SetRootVelocity(Vec3)
	RootAngularVelocity() Vec3
	SetRootAngularVelocity(Vec3)

	DOF() int
	JointPositions() []float64
	SetJointPositions(q []float64) error
	JointVelocities() []float64
	SetJointVelocities(qv []float64) error

	// Links returns the chain's link actors in joint order.
	Links() []Actor
}

// Sensor is a bound camera. TakePicture triggers capture; textures read
// back the most recent capture. Float textures are Width×Height×4
// (row-major, RGBA or XYZW), uint32 textures are Width×Height.
type Sensor interface {
	Name() string
	Width() int
	Height() int

	TakePicture()
	FloatTexture(ch Channel) ([]float32, error)
	Uint32Texture(ch Channel) ([]uint32, error)

	// ModelMatrix is the 4×4 camera-to-world transform, row-major.
	ModelMatrix() [16]float64
	// ExtrinsicMatrix is the 4×4 world-to-camera transform, row-major.
	ExtrinsicMatrix() [16]float64
	// IntrinsicMatrix is the 3×3 pinhole projection matrix, row-major.
	IntrinsicMatrix() [9]float64
}

// Viewer is an optional interactive window onto a scene.
type Viewer interface {
	SetScene(Scene)
	Render()
	Close()
}
