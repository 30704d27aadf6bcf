package fdm

// Record is one decoded FGNetFDM packet. Field order matches the wire order
// exactly; angles are radians, distances metres, as sent by the simulator.
type Record struct {
	Version uint32 `json:"version"`
	Padding uint32 `json:"padding"`

	// Position
	Longitude float64 `json:"longitude"` // geodetic, radians
	Latitude  float64 `json:"latitude"`  // geodetic, radians
	Altitude  float64 `json:"altitude"`  // above sea level, metres

	AGL   float32 `json:"agl"`   // above ground level, metres
	Phi   float32 `json:"phi"`   // roll, radians
	Theta float32 `json:"theta"` // pitch, radians
	Psi   float32 `json:"psi"`   // yaw or true heading, radians
	Alpha float32 `json:"alpha"` // angle of attack, radians
	Beta  float32 `json:"beta"`  // side slip angle, radians

	// Velocities
	PhiDot    float32 `json:"phidot"`     // roll rate, radians/sec
	ThetaDot  float32 `json:"thetadot"`   // pitch rate, radians/sec
	PsiDot    float32 `json:"psidot"`     // yaw rate, radians/sec
	VCAS      float32 `json:"vcas"`       // calibrated airspeed, knots
	ClimbRate float32 `json:"climb_rate"` // feet/sec
	VNorth    float32 `json:"v_north"`    // north velocity in local/body frame, fps
	VEast     float32 `json:"v_east"`     // east velocity in local/body frame, fps
	VDown     float32 `json:"v_down"`     // down/vertical velocity in local/body frame, fps
	VBodyU    float32 `json:"v_body_u"`   // ECEF velocity in body frame, fps
	VBodyV    float32 `json:"v_body_v"`
	VBodyW    float32 `json:"v_body_w"`

	// Accelerations in the pilot's frame, fps^2
	AXPilot float32 `json:"a_x_pilot"`
	AYPilot float32 `json:"a_y_pilot"`
	AZPilot float32 `json:"a_z_pilot"`

	StallWarning float32 `json:"stall_warning"` // 0.0 - 1.0 indicating the amount of stall
	SlipDeg      float32 `json:"slip_deg"`      // slip ball deflection

	// Engine status
	NumEngines uint32              `json:"num_engines"`
	EngState   [MaxEngines]uint32  `json:"eng_state"` // off, cranking, running
	RPM        [MaxEngines]float32 `json:"rpm"`
	FuelFlow   [MaxEngines]float32 `json:"fuel_flow"` // gph
	FuelPx     [MaxEngines]float32 `json:"fuel_px"`   // psi
	EGT        [MaxEngines]float32 `json:"egt"`       // deg F
	CHT        [MaxEngines]float32 `json:"cht"`       // deg F
	MPOSI      [MaxEngines]float32 `json:"mp_osi"`    // manifold pressure
	TIT        [MaxEngines]float32 `json:"tit"`       // turbine inlet temperature
	OilTemp    [MaxEngines]float32 `json:"oil_temp"`  // deg F
	OilPx      [MaxEngines]float32 `json:"oil_px"`    // psi

	// Consumables
	NumTanks     uint32            `json:"num_tanks"`
	FuelQuantity [MaxTanks]float32 `json:"fuel_quantity"`

	// Gear status
	NumWheels       uint32             `json:"num_wheels"`
	WOW             [MaxWheels]uint32  `json:"wow"`
	GearPos         [MaxWheels]float32 `json:"gear_pos"`
	GearSteer       [MaxWheels]float32 `json:"gear_steer"`
	GearCompression [MaxWheels]float32 `json:"gear_compression"`

	// Environment
	CurTime    uint32  `json:"cur_time"`   // current unix time
	Warp       int32   `json:"warp"`       // offset in seconds to unix time
	Visibility float32 `json:"visibility"` // metres

	// Control surface positions, normalised values
	Elevator        float32 `json:"elevator"`
	ElevatorTrimTab float32 `json:"elevator_trim_tab"`
	LeftFlap        float32 `json:"left_flap"`
	RightFlap       float32 `json:"right_flap"`
	LeftAileron     float32 `json:"left_aileron"`
	RightAileron    float32 `json:"right_aileron"`
	Rudder          float32 `json:"rudder"`
	NoseWheel       float32 `json:"nose_wheel"`
	Speedbrake      float32 `json:"speedbrake"`
	Spoilers        float32 `json:"spoilers"`
}

// OnGround reports whether any gear unit within NumWheels has weight on wheels.
func (r *Record) OnGround() bool {
	n := int(r.NumWheels)
	if n > MaxWheels {
		n = MaxWheels
	}
	for i := 0; i < n; i++ {
		if r.WOW[i] != 0 {
			return true
		}
	}
	return false
}
