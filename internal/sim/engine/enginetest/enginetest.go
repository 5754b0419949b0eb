// Package enginetest provides a deterministic in-memory implementation of
// the engine interfaces. It integrates rigid-body kinematics with fixed
// timesteps and renders procedural textures, so episode-level behaviour
// (seeding, stepping, observation capture, state serialization) can be
// exercised end to end without a physics/render stack.
//
// It is a test fixture, not a physics engine: there are no contacts, no
// forces, and rendering is a deterministic function of scene state.
package enginetest

import (
	"fmt"
	"math"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// Engine implements engine.Engine.
type Engine struct {
	backend engine.Backend
}

// New creates an engine with the given renderer backend kind.
func New(backend engine.Backend) *Engine {
	return &Engine{backend: backend}
}

func (e *Engine) Backend() engine.Backend { return e.backend }

// CreateScene creates an empty scene with the configured timestep.
func (e *Engine) CreateScene(cfg engine.SceneConfig) (engine.Scene, error) {
	if cfg.Timestep <= 0 {
		return nil, fmt.Errorf("enginetest: timestep must be positive, got %g", cfg.Timestep)
	}
	return &scene{
		backend:  e.backend,
		timestep: cfg.Timestep,
		names:    make(map[string]bool),
		nextID:   1, // id 0 is reserved for background in segmentation
	}, nil
}

// CreateViewer returns a no-op viewer.
func (e *Engine) CreateViewer() (engine.Viewer, error) {
	return &viewer{}, nil
}

type viewer struct {
	scene  engine.Scene
	closed bool
}

func (v *viewer) SetScene(s engine.Scene) { v.scene = s }
func (v *viewer) Render()                 {}
func (v *viewer) Close()                  { v.closed = true; v.scene = nil }

type scene struct {
	backend   engine.Backend
	timestep  float64
	destroyed bool

	actors  []*actor
	arts    []*articulation
	sensors []*sensor

	names  map[string]bool
	nextID uint32
}

func (s *scene) reserveName(name string) error {
	if name == "" {
		return fmt.Errorf("enginetest: empty name")
	}
	if s.names[name] {
		return fmt.Errorf("enginetest: duplicate name %q", name)
	}
	s.names[name] = true
	return nil
}

func (s *scene) AddActor(cfg engine.ActorConfig) (engine.Actor, error) {
	if s.destroyed {
		return nil, fmt.Errorf("enginetest: scene destroyed")
	}
	if err := s.reserveName(cfg.Name); err != nil {
		return nil, err
	}
	a := &actor{
		id:     s.nextID,
		name:   cfg.Name,
		static: cfg.Static,
		pose:   cfg.Pose,
	}
	if a.pose.Q == (engine.Quat{}) {
		a.pose.Q = engine.QuatIdentity()
	}
	s.nextID++
	s.actors = append(s.actors, a)
	return a, nil
}

func (s *scene) AddArticulation(cfg engine.ArticulationConfig) (engine.Articulation, error) {
	if s.destroyed {
		return nil, fmt.Errorf("enginetest: scene destroyed")
	}
	if err := s.reserveName(cfg.Name); err != nil {
		return nil, err
	}
	if len(cfg.Joints) == 0 {
		return nil, fmt.Errorf("enginetest: articulation %q has no joints", cfg.Name)
	}
	art := &articulation{
		name:     cfg.Name,
		rootPose: cfg.Pose,
		qpos:     make([]float64, len(cfg.Joints)),
		qvel:     make([]float64, len(cfg.Joints)),
	}
	if art.rootPose.Q == (engine.Quat{}) {
		art.rootPose.Q = engine.QuatIdentity()
	}
	for _, joint := range cfg.Joints {
		link := &actor{
			id:   s.nextID,
			name: cfg.Name + "/link_" + joint,
		}
		link.pose.Q = engine.QuatIdentity()
		s.nextID++
		art.links = append(art.links, link)
	}
	art.updateLinkPoses()
	s.arts = append(s.arts, art)
	return art, nil
}

func (s *scene) Actors() []engine.Actor {
	out := make([]engine.Actor, len(s.actors))
	for i, a := range s.actors {
		out[i] = a
	}
	return out
}

func (s *scene) Articulations() []engine.Articulation {
	out := make([]engine.Articulation, len(s.arts))
	for i, a := range s.arts {
		out[i] = a
	}
	return out
}

func (s *scene) AddCamera(name string, pose engine.Pose, intr engine.CameraIntrinsics) (engine.Sensor, error) {
	return s.addCamera(name, nil, pose, intr)
}

func (s *scene) AddMountedCamera(name string, mount engine.Actor, local engine.Pose, intr engine.CameraIntrinsics) (engine.Sensor, error) {
	if mount == nil {
		return nil, fmt.Errorf("enginetest: nil mount actor for camera %q", name)
	}
	return s.addCamera(name, mount, local, intr)
}

func (s *scene) addCamera(name string, mount engine.Actor, local engine.Pose, intr engine.CameraIntrinsics) (engine.Sensor, error) {
	if s.destroyed {
		return nil, fmt.Errorf("enginetest: scene destroyed")
	}
	if err := s.reserveName(name); err != nil {
		return nil, err
	}
	if intr.Width <= 0 || intr.Height <= 0 {
		return nil, fmt.Errorf("enginetest: camera %q has invalid resolution %dx%d", name, intr.Width, intr.Height)
	}
	if local.Q == (engine.Quat{}) {
		local.Q = engine.QuatIdentity()
	}
	cam := &sensor{
		scene: s,
		name:  name,
		mount: mount,
		local: local,
		intr:  intr,
	}
	s.sensors = append(s.sensors, cam)
	return cam, nil
}

func (s *scene) SetAmbientLight(color engine.Vec3)                      {}
func (s *scene) AddDirectionalLight(dir, color engine.Vec3, shadow bool) {}

// UpdateRender is a no-op: procedural textures always read live state.
func (s *scene) UpdateRender() {}

// Step advances all dynamic bodies by one timestep: positions integrate
// linear velocity, orientations integrate angular velocity, articulation
// joints integrate joint velocity.
func (s *scene) Step() {
	if s.destroyed {
		return
	}
	dt := s.timestep
	for _, a := range s.actors {
		if a.static {
			continue
		}
		a.integrate(dt)
	}
	for _, art := range s.arts {
		art.rootPose.P = art.rootPose.P.Add(art.rootVel.Scale(dt))
		art.rootPose.Q = integrateQuat(art.rootPose.Q, art.rootAngVel, dt)
		for i := range art.qpos {
			art.qpos[i] += art.qvel[i] * dt
		}
		art.updateLinkPoses()
	}
}

func (s *scene) Destroy() {
	s.destroyed = true
	s.actors = nil
	s.arts = nil
	s.sensors = nil
}

// integrateQuat advances orientation q by angular velocity w over dt using
// the standard first-order quaternion derivative, then renormalizes.
func integrateQuat(q engine.Quat, w engine.Vec3, dt float64) engine.Quat {
	dq := (engine.Quat{0, w[0], w[1], w[2]}).Mul(q)
	for i := range q {
		q[i] += 0.5 * dt * dq[i]
	}
	return q.Normalize()
}

type actor struct {
	id     uint32
	name   string
	static bool

	pose   engine.Pose
	vel    engine.Vec3
	angVel engine.Vec3
}

func (a *actor) ID() uint32                        { return a.id }
func (a *actor) Name() string                      { return a.name }
func (a *actor) Static() bool                      { return a.static }
func (a *actor) Pose() engine.Pose                 { return a.pose }
func (a *actor) SetPose(p engine.Pose)             { a.pose = p }
func (a *actor) Velocity() engine.Vec3             { return a.vel }
func (a *actor) SetVelocity(v engine.Vec3)         { a.vel = v }
func (a *actor) AngularVelocity() engine.Vec3      { return a.angVel }
func (a *actor) SetAngularVelocity(w engine.Vec3)  { a.angVel = w }

func (a *actor) integrate(dt float64) {
	a.pose.P = a.pose.P.Add(a.vel.Scale(dt))
	a.pose.Q = integrateQuat(a.pose.Q, a.angVel, dt)
}

type articulation struct {
	name string

	rootPose   engine.Pose
	rootVel    engine.Vec3
	rootAngVel engine.Vec3

	qpos  []float64
	qvel  []float64
	links []*actor
}

func (a *articulation) Name() string                         { return a.name }
func (a *articulation) RootPose() engine.Pose                { return a.rootPose }
func (a *articulation) RootVelocity() engine.Vec3            { return a.rootVel }
func (a *articulation) SetRootVelocity(v engine.Vec3)        { a.rootVel = v }
func (a *articulation) RootAngularVelocity() engine.Vec3     { return a.rootAngVel }
func (a *articulation) SetRootAngularVelocity(w engine.Vec3) { a.rootAngVel = w }
func (a *articulation) DOF() int                             { return len(a.qpos) }

func (a *articulation) SetRootPose(p engine.Pose) {
	a.rootPose = p
	a.updateLinkPoses()
}

func (a *articulation) JointPositions() []float64 {
	out := make([]float64, len(a.qpos))
	copy(out, a.qpos)
	return out
}

func (a *articulation) SetJointPositions(q []float64) error {
	if len(q) != len(a.qpos) {
		return fmt.Errorf("enginetest: articulation %q has %d DOF, got %d joint positions", a.name, len(a.qpos), len(q))
	}
	copy(a.qpos, q)
	a.updateLinkPoses()
	return nil
}

func (a *articulation) JointVelocities() []float64 {
	out := make([]float64, len(a.qvel))
	copy(out, a.qvel)
	return out
}

func (a *articulation) SetJointVelocities(qv []float64) error {
	if len(qv) != len(a.qvel) {
		return fmt.Errorf("enginetest: articulation %q has %d DOF, got %d joint velocities", a.name, len(a.qvel), len(qv))
	}
	copy(a.qvel, qv)
	return nil
}

func (a *articulation) Links() []engine.Actor {
	out := make([]engine.Actor, len(a.links))
	for i, l := range a.links {
		out[i] = l
	}
	return out
}

// updateLinkPoses places link i at the cumulative prismatic offset of
// joints 0..i from the root. Joint axes cycle x, y, z by index, so a
// three-joint chain behaves like an xyz gantry.
func (a *articulation) updateLinkPoses() {
	var offset engine.Vec3
	for i, link := range a.links {
		offset[i%3] += a.qpos[i]
		link.pose = engine.Pose{P: a.rootPose.Apply(offset), Q: a.rootPose.Q}
	}
}

type sensor struct {
	scene *scene
	name  string
	mount engine.Actor // nil for free cameras
	local engine.Pose
	intr  engine.CameraIntrinsics

	captured  bool
	capColor  []float32
	capPos    []float32
	capSeg    []uint32
	capPose   engine.Pose
}

func (c *sensor) Name() string { return c.name }
func (c *sensor) Width() int   { return c.intr.Width }
func (c *sensor) Height() int  { return c.intr.Height }

func (c *sensor) worldPose() engine.Pose {
	if c.mount == nil {
		return c.local
	}
	return c.mount.Pose().Mul(c.local)
}

// bodyIDs enumerates segmentation ids in creation order: free actors first,
// then each articulation's links.
func (c *sensor) bodyIDs() []uint32 {
	var ids []uint32
	for _, a := range c.scene.actors {
		ids = append(ids, a.id)
	}
	for _, art := range c.scene.arts {
		for _, l := range art.links {
			ids = append(ids, l.id)
		}
	}
	return ids
}

// stateChecksum folds every body pose into a single scalar so rendered
// color pixels change whenever the scene moves. Purely for test
// sensitivity; there is no geometry.
func (c *sensor) stateChecksum() float64 {
	sum := 0.0
	for _, a := range c.scene.actors {
		sum += a.pose.P[0] + a.pose.P[1] + a.pose.P[2]
	}
	for _, art := range c.scene.arts {
		sum += art.rootPose.P[0] + art.rootPose.P[1] + art.rootPose.P[2]
		for _, q := range art.qpos {
			sum += q
		}
	}
	return sum - math.Floor(sum)
}

// TakePicture snapshots the scene into per-channel buffers. Textures read
// the snapshot, not live state, matching real capture semantics.
func (c *sensor) TakePicture() {
	w, h := c.intr.Width, c.intr.Height
	checksum := c.stateChecksum()
	ids := c.bodyIDs()

	color := make([]float32, w*h*4)
	pos := make([]float32, w*h*4)
	seg := make([]uint32, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			color[i*4+0] = float32(x) / float32(max(w-1, 1))
			color[i*4+1] = float32(y) / float32(max(h-1, 1))
			color[i*4+2] = float32(checksum)
			color[i*4+3] = 1

			// Camera-local point on the z = -1 plane, w = 1.
			pos[i*4+0] = float32((float64(x)+0.5)/float64(w) - 0.5)
			pos[i*4+1] = float32(0.5 - (float64(y)+0.5)/float64(h))
			pos[i*4+2] = -1
			pos[i*4+3] = 1

			// Vertical stripes, one per body, painted with its id.
			if len(ids) > 0 {
				seg[i] = ids[x*len(ids)/w]
			}
		}
	}

	c.captured = true
	c.capColor = color
	c.capPos = pos
	c.capSeg = seg
	c.capPose = c.worldPose()
}

func (c *sensor) FloatTexture(ch engine.Channel) ([]float32, error) {
	if !c.captured {
		return nil, fmt.Errorf("enginetest: sensor %q has no capture", c.name)
	}
	switch ch {
	case engine.ChannelColor:
		return c.capColor, nil
	case engine.ChannelPosition:
		return c.capPos, nil
	default:
		return nil, fmt.Errorf("enginetest: channel %s is not a float texture", ch)
	}
}

func (c *sensor) Uint32Texture(ch engine.Channel) ([]uint32, error) {
	if !c.captured {
		return nil, fmt.Errorf("enginetest: sensor %q has no capture", c.name)
	}
	if ch != engine.ChannelSegmentation {
		return nil, fmt.Errorf("enginetest: channel %s is not a uint32 texture", ch)
	}
	return c.capSeg, nil
}

func (c *sensor) ModelMatrix() [16]float64 {
	if c.captured {
		return c.capPose.Matrix()
	}
	return c.worldPose().Matrix()
}

func (c *sensor) ExtrinsicMatrix() [16]float64 {
	if c.captured {
		return c.capPose.Inv().Matrix()
	}
	return c.worldPose().Inv().Matrix()
}

func (c *sensor) IntrinsicMatrix() [9]float64 {
	fy := float64(c.intr.Height) / (2 * math.Tan(c.intr.FOVY/2))
	cx := float64(c.intr.Width) / 2
	cy := float64(c.intr.Height) / 2
	return [9]float64{
		fy, 0, cx,
		0, fy, cy,
		0, 0, 1,
	}
}
