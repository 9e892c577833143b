package vm

import (
	"time"
)

// ---------------------------------------------------------------------------
// Date and time values
// ---------------------------------------------------------------------------

// Date is a calendar day. At holds midnight UTC of that day.
type Date struct {
	At time.Time
}

func (d *Date) TypeName() string { return "date" }

// TimeOfDay is a wall-clock time. At holds that time on 0000-01-01 UTC.
type TimeOfDay struct {
	At time.Time
}

func (t *TimeOfDay) TypeName() string { return "time" }

// DateTime is a calendar day plus a wall-clock time, in UTC.
type DateTime struct {
	At time.Time
}

func (d *DateTime) TypeName() string { return "datetime" }

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-01-02 15:04:05"
)

func (vm *VM) registerDateTimePrimitives() {
	vm.DefineNative("Date", 3, "Date(year, month, day) creates a calendar date.",
		func(_ *VM, args []Value) (Value, error) {
			f, err := integerArgs("Date", args)
			if err != nil {
				return Null, err
			}
			at, err := civilTime("Date", f[0], f[1], f[2], 0, 0, 0)
			if err != nil {
				return Null, err
			}
			return FromObject(&Date{At: at}), nil
		})

	vm.DefineNative("Time", 3, "Time(hour, minute, second) creates a time of day.",
		func(_ *VM, args []Value) (Value, error) {
			f, err := integerArgs("Time", args)
			if err != nil {
				return Null, err
			}
			at, err := civilTime("Time", 0, 1, 1, f[0], f[1], f[2])
			if err != nil {
				return Null, err
			}
			return FromObject(&TimeOfDay{At: at}), nil
		})

	vm.DefineNative("DateTime", 6, "DateTime(year, month, day, hour, minute, second) creates a date and time.",
		func(_ *VM, args []Value) (Value, error) {
			f, err := integerArgs("DateTime", args)
			if err != nil {
				return Null, err
			}
			at, err := civilTime("DateTime", f[0], f[1], f[2], f[3], f[4], f[5])
			if err != nil {
				return Null, err
			}
			return FromObject(&DateTime{At: at}), nil
		})

	vm.DefineNative("date_format_datetime", 2, "date_format_datetime(date, layout) formats a date with a Go layout such as \"2006-01-02\".",
		func(_ *VM, args []Value) (Value, error) {
			d, ok := args[0].Object().(*Date)
			if !ok {
				return Null, Errorf("date_format_datetime() expects a date, got %s.", args[0].TypeName())
			}
			return formatWith("date_format_datetime", d.At, args[1])
		})

	vm.DefineNative("time_format", 2, "time_format(time, layout) formats a time with a Go layout such as \"15:04:05\".",
		func(_ *VM, args []Value) (Value, error) {
			t, ok := args[0].Object().(*TimeOfDay)
			if !ok {
				return Null, Errorf("time_format() expects a time, got %s.", args[0].TypeName())
			}
			return formatWith("time_format", t.At, args[1])
		})

	vm.DefineNative("datetime_format", 2, "datetime_format(datetime, layout) formats a datetime with a Go layout.",
		func(_ *VM, args []Value) (Value, error) {
			dt, ok := args[0].Object().(*DateTime)
			if !ok {
				return Null, Errorf("datetime_format() expects a datetime, got %s.", args[0].TypeName())
			}
			return formatWith("datetime_format", dt.At, args[1])
		})
}

func integerArgs(name string, args []Value) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		if !a.IsInteger() {
			return nil, Errorf("%s() expects integer arguments, got %s.", name, Render(a))
		}
		out[i] = int(a.Number())
	}
	return out, nil
}

// civilTime builds a UTC time, rejecting fields time.Date would normalize
// (month 13, February 30, minute 60 and the like).
func civilTime(name string, year, month, day, hour, minute, second int) (time.Time, error) {
	at := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if at.Year() != year || int(at.Month()) != month || at.Day() != day ||
		at.Hour() != hour || at.Minute() != minute || at.Second() != second {
		return time.Time{}, Errorf("%s() received an out-of-range field.", name)
	}
	return at, nil
}

func formatWith(name string, at time.Time, layout Value) (Value, error) {
	if !layout.IsString() {
		return Null, Errorf("%s() expects a layout string, got %s.", name, layout.TypeName())
	}
	return FromString(at.Format(layout.Str())), nil
}
