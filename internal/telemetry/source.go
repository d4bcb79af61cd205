// Package telemetry provides named, typed channels with latest-value
// semantics, and the transports that keep them current.
//
// A Source hands out subscribers by name. Reads never block: until a value
// of the right type has been published, a subscriber returns the default it
// was created with. Transports (gRPC, serial lines) write into a Table;
// readers never see connection state, only values or defaults.
package telemetry

// Channel names published by the robot under the SmartDashboard table.
const (
	TableName = "SmartDashboard"

	ChannelLiftHeight  = "Lift Height"
	ChannelArmAngle    = "Arm Angle"
	ChannelArmExtended = "Arm Extended"
	ChannelIntakeAngle = "Intake Angle"
	ChannelMode        = "Mode"
)

// Channels lists every channel the view subscribes to.
func Channels() []string {
	return []string{ChannelLiftHeight, ChannelArmAngle, ChannelArmExtended, ChannelIntakeAngle, ChannelMode}
}

// Value is the set of channel value types.
type Value interface {
	~float64 | ~bool | ~string
}

// Subscriber reads the latest value of one channel.
type Subscriber[T Value] interface {
	// Name is the channel name.
	Name() string
	// Get returns the latest published value, or the subscription default.
	Get() T
}

// Source hands out typed subscribers by channel name.
type Source interface {
	Double(name string, def float64) Subscriber[float64]
	Boolean(name string, def bool) Subscriber[bool]
	String(name string, def string) Subscriber[string]
}

// Failer is implemented by sources that can fail for good, for example a
// serial port that went away. Err returns nil while the source is usable.
type Failer interface {
	Err() error
}
