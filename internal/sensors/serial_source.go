package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/headtracker/internal/imu"
)

// TypeIMU is the sentence type of the head tracker IMU stream:
//
//	$HTIMU,<timestamp_ns>,<gx>,<gy>,<gz>,<ax>,<ay>,<az>*CS
//
// Gyro is in rad/s, accel in g. HT is the talker.
const TypeIMU = "IMU"

// IMUSentence is a decoded $--IMU sentence.
type IMUSentence struct {
	nmea.BaseSentence
	TimestampNanos int64
	Gx, Gy, Gz     float64
	Ax, Ay, Az     float64
}

func parseIMU(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	m := IMUSentence{
		BaseSentence:   s,
		TimestampNanos: p.Int64(0, "timestamp"),
		Gx:             p.Float64(1, "gx"),
		Gy:             p.Float64(2, "gy"),
		Gz:             p.Float64(3, "gz"),
		Ax:             p.Float64(4, "ax"),
		Ay:             p.Float64(5, "ay"),
		Az:             p.Float64(6, "az"),
	}
	return m, p.Err()
}

var sentenceParser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeIMU: parseIMU,
	},
}

// ParseIMUSentence decodes one line of the serial IMU stream. The
// checksum is verified.
func ParseIMUSentence(line string) (IMUSentence, error) {
	sentence, err := sentenceParser.Parse(line)
	if err != nil {
		return IMUSentence{}, err
	}
	m, ok := sentence.(IMUSentence)
	if !ok {
		return IMUSentence{}, fmt.Errorf("unexpected sentence type %q", sentence.DataType())
	}
	return m, nil
}

// FormatIMUSentence encodes a reading as an $HTIMU sentence with checksum.
func FormatIMUSentence(r imu.Reading) string {
	body := fmt.Sprintf("HTIMU,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f",
		r.TimestampNanos, r.Gx, r.Gy, r.Gz, r.Ax, r.Ay, r.Az)
	return "$" + body + "*" + nmea.Checksum(body)
}

type serialSource struct {
	name   string
	port   io.ReadCloser
	reader *bufio.Reader
}

// NewSerialSource opens a serial port streaming $HTIMU sentences.
func NewSerialSource(name, portName string, baud int) (imu.Source, io.Closer, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%s IMU: open serial %s: %w", name, portName, err)
	}
	log.Printf("%s IMU serial port opened on %s at %d baud", name, portName, baud)

	src := newSerialSource(name, port)
	return src, src, nil
}

func newSerialSource(name string, port io.ReadCloser) *serialSource {
	return &serialSource{name: name, port: port, reader: bufio.NewReader(port)}
}

// Next blocks until the next valid sentence. Noise and partial lines are
// skipped; only read errors are returned.
func (s *serialSource) Next() (imu.Reading, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return imu.Reading{}, fmt.Errorf("%s IMU serial read: %w", s.name, err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		m, err := ParseIMUSentence(line)
		if err != nil {
			// noisy link or a different sentence on the same port
			continue
		}

		return imu.Reading{
			Source:         s.name,
			TimestampNanos: m.TimestampNanos,
			Sample: imu.Sample{
				Gx: m.Gx, Gy: m.Gy, Gz: m.Gz,
				Ax: m.Ax, Ay: m.Ay, Az: m.Az,
			},
		}, nil
	}
}

func (s *serialSource) Close() error {
	return s.port.Close()
}
