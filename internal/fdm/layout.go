package fdm

import (
	"encoding/binary"
	"fmt"
)

/*
FGNetFDM Wire Layout

FlightGear's native FDM protocol (FG_NET_FDM_VERSION 24, also emitted by
ArduPilot SITL) sends one fixed-size datagram per simulation step. The
payload is a packed C struct, so the byte layout is fully described by the
ordered list of fields below:

├── Header (8 bytes)        version, padding
├── Position (24 bytes)     longitude, latitude, altitude (double, radians/metres)
├── Kinematics (88 bytes)   agl, attitude, rates, speeds, accelerations, stall/slip
├── Engines (164 bytes)     num_engines + eng_state[4] + 9 groups of float[4]
├── Consumables (20 bytes)  num_tanks + fuel_quantity[4]
├── Gear (52 bytes)         num_wheels + wow[3] + pos/steer/compression[3]
├── Environment (12 bytes)  cur_time, warp, visibility
└── Controls (40 bytes)     10 control surface positions

Values are little-endian with no padding between fields. Senders that byte
swap the struct (stock SITL calls fdm.ByteSwap()) are not supported.
*/

const (
	ProtocolVersion = 24 // FG_NET_FDM_VERSION of this layout; informational only

	MaxEngines = 4
	MaxTanks   = 4
	MaxWheels  = 3
)

// Type is the primitive wire type of a field.
type Type int

const (
	Uint32 Type = iota
	Int32
	Float32
	Float64
)

// Size returns the width of one value of the type in bytes.
func (t Type) Size() int {
	switch t {
	case Uint32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Field describes one entry of the wire layout. Count is 1 for scalars and
// the fixed array length otherwise. slot returns the destination inside a
// Record: a pointer for scalars, a slice over the backing array for arrays.
type Field struct {
	Name  string
	Type  Type
	Count int
	slot  func(r *Record) any
}

// Size returns the number of bytes the field occupies on the wire.
func (f Field) Size() int {
	return f.Type.Size() * f.Count
}

func scalar(name string, t Type, slot func(r *Record) any) Field {
	return Field{Name: name, Type: t, Count: 1, slot: slot}
}

func array(name string, t Type, n int, slot func(r *Record) any) Field {
	return Field{Name: name, Type: t, Count: n, slot: slot}
}

// Layout is the ordered FGNetFDM field table shared by every Decode call.
var Layout = []Field{
	scalar("version", Uint32, func(r *Record) any { return &r.Version }),
	scalar("padding", Uint32, func(r *Record) any { return &r.Padding }),

	scalar("longitude", Float64, func(r *Record) any { return &r.Longitude }),
	scalar("latitude", Float64, func(r *Record) any { return &r.Latitude }),
	scalar("altitude", Float64, func(r *Record) any { return &r.Altitude }),

	scalar("agl", Float32, func(r *Record) any { return &r.AGL }),
	scalar("phi", Float32, func(r *Record) any { return &r.Phi }),
	scalar("theta", Float32, func(r *Record) any { return &r.Theta }),
	scalar("psi", Float32, func(r *Record) any { return &r.Psi }),
	scalar("alpha", Float32, func(r *Record) any { return &r.Alpha }),
	scalar("beta", Float32, func(r *Record) any { return &r.Beta }),
	scalar("phidot", Float32, func(r *Record) any { return &r.PhiDot }),
	scalar("thetadot", Float32, func(r *Record) any { return &r.ThetaDot }),
	scalar("psidot", Float32, func(r *Record) any { return &r.PsiDot }),
	scalar("vcas", Float32, func(r *Record) any { return &r.VCAS }),
	scalar("climb_rate", Float32, func(r *Record) any { return &r.ClimbRate }),
	scalar("v_north", Float32, func(r *Record) any { return &r.VNorth }),
	scalar("v_east", Float32, func(r *Record) any { return &r.VEast }),
	scalar("v_down", Float32, func(r *Record) any { return &r.VDown }),
	scalar("v_body_u", Float32, func(r *Record) any { return &r.VBodyU }),
	scalar("v_body_v", Float32, func(r *Record) any { return &r.VBodyV }),
	scalar("v_body_w", Float32, func(r *Record) any { return &r.VBodyW }),
	scalar("A_X_pilot", Float32, func(r *Record) any { return &r.AXPilot }),
	scalar("A_Y_pilot", Float32, func(r *Record) any { return &r.AYPilot }),
	scalar("A_Z_pilot", Float32, func(r *Record) any { return &r.AZPilot }),
	scalar("stall_warning", Float32, func(r *Record) any { return &r.StallWarning }),
	scalar("slip_deg", Float32, func(r *Record) any { return &r.SlipDeg }),

	scalar("num_engines", Uint32, func(r *Record) any { return &r.NumEngines }),
	array("eng_state", Uint32, MaxEngines, func(r *Record) any { return r.EngState[:] }),
	array("rpm", Float32, MaxEngines, func(r *Record) any { return r.RPM[:] }),
	array("fuel_flow", Float32, MaxEngines, func(r *Record) any { return r.FuelFlow[:] }),
	array("fuel_px", Float32, MaxEngines, func(r *Record) any { return r.FuelPx[:] }),
	array("egt", Float32, MaxEngines, func(r *Record) any { return r.EGT[:] }),
	array("cht", Float32, MaxEngines, func(r *Record) any { return r.CHT[:] }),
	array("mp_osi", Float32, MaxEngines, func(r *Record) any { return r.MPOSI[:] }),
	array("tit", Float32, MaxEngines, func(r *Record) any { return r.TIT[:] }),
	array("oil_temp", Float32, MaxEngines, func(r *Record) any { return r.OilTemp[:] }),
	array("oil_px", Float32, MaxEngines, func(r *Record) any { return r.OilPx[:] }),

	scalar("num_tanks", Uint32, func(r *Record) any { return &r.NumTanks }),
	array("fuel_quantity", Float32, MaxTanks, func(r *Record) any { return r.FuelQuantity[:] }),

	scalar("num_wheels", Uint32, func(r *Record) any { return &r.NumWheels }),
	array("wow", Uint32, MaxWheels, func(r *Record) any { return r.WOW[:] }),
	array("gear_pos", Float32, MaxWheels, func(r *Record) any { return r.GearPos[:] }),
	array("gear_steer", Float32, MaxWheels, func(r *Record) any { return r.GearSteer[:] }),
	array("gear_compression", Float32, MaxWheels, func(r *Record) any { return r.GearCompression[:] }),

	scalar("cur_time", Uint32, func(r *Record) any { return &r.CurTime }),
	scalar("warp", Int32, func(r *Record) any { return &r.Warp }),
	scalar("visibility", Float32, func(r *Record) any { return &r.Visibility }),

	scalar("elevator", Float32, func(r *Record) any { return &r.Elevator }),
	scalar("elevator_trim_tab", Float32, func(r *Record) any { return &r.ElevatorTrimTab }),
	scalar("left_flap", Float32, func(r *Record) any { return &r.LeftFlap }),
	scalar("right_flap", Float32, func(r *Record) any { return &r.RightFlap }),
	scalar("left_aileron", Float32, func(r *Record) any { return &r.LeftAileron }),
	scalar("right_aileron", Float32, func(r *Record) any { return &r.RightAileron }),
	scalar("rudder", Float32, func(r *Record) any { return &r.Rudder }),
	scalar("nose_wheel", Float32, func(r *Record) any { return &r.NoseWheel }),
	scalar("speedbrake", Float32, func(r *Record) any { return &r.Speedbrake }),
	scalar("spoilers", Float32, func(r *Record) any { return &r.Spoilers }),
}

// WireSize is the exact length of an FGNetFDM datagram, computed from Layout.
var WireSize = layoutSize(Layout)

func init() {
	if err := checkLayout(Layout, WireSize); err != nil {
		panic(err)
	}
}

func layoutSize(layout []Field) int {
	n := 0
	for _, f := range layout {
		n += f.Size()
	}
	return n
}

// checkLayout verifies that every field binds to a slot of the declared type
// and length, and that the table covers the whole Record with no gaps.
func checkLayout(layout []Field, size int) error {
	var r Record
	for i, f := range layout {
		if f.Count < 1 {
			return fmt.Errorf("%w: field %d (%s) has count %d", ErrLayoutInvariant, i, f.Name, f.Count)
		}
		if f.slot == nil {
			return fmt.Errorf("%w: field %d (%s) has no slot", ErrLayoutInvariant, i, f.Name)
		}
		if !slotMatches(f.slot(&r), f.Type, f.Count) {
			return fmt.Errorf("%w: field %d (%s) slot %T does not hold %d × %s",
				ErrLayoutInvariant, i, f.Name, f.slot(&r), f.Count, f.Type)
		}
	}
	if want := binary.Size(r); size != want {
		return fmt.Errorf("%w: layout is %d bytes, record is %d bytes", ErrLayoutInvariant, size, want)
	}
	return nil
}

func slotMatches(slot any, t Type, count int) bool {
	if count == 1 {
		switch slot.(type) {
		case *uint32:
			return t == Uint32
		case *int32:
			return t == Int32
		case *float32:
			return t == Float32
		case *float64:
			return t == Float64
		}
		return false
	}
	switch s := slot.(type) {
	case []uint32:
		return t == Uint32 && len(s) == count
	case []int32:
		return t == Int32 && len(s) == count
	case []float32:
		return t == Float32 && len(s) == count
	case []float64:
		return t == Float64 && len(s) == count
	}
	return false
}
