package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gosuri/uitable"
	"golang.org/x/term"

	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// Text asks questions on a line-oriented terminal. End of input answers
// every pending question with "declined".
type Text struct {
	in  *bufio.Reader
	fd  int
	out io.Writer
}

var _ Prompter = (*Text)(nil)

// NewText reads answers from in and writes questions to out. When in is a
// terminal the api key is read without echo.
func NewText(in io.Reader, out io.Writer) *Text {
	t := &Text{in: bufio.NewReader(in), fd: -1, out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
	}
	return t
}

// readLine returns the next trimmed line. io.EOF is returned only when no
// more input is available at all.
func (t *Text) readLine(question string) (string, error) {
	fmt.Fprint(t.out, question)
	line, err := t.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// choose repeats question until one of options is entered, case insensitive.
func (t *Text) choose(question string, options map[string]string) (string, error) {
	for {
		answer, err := t.readLine(question)
		if err != nil {
			return "", eofIsDecline(err)
		}
		if v, ok := options[strings.ToUpper(answer)]; ok {
			return v, nil
		}
	}
}

func (t *Text) yesNo() (bool, error) {
	v, err := t.choose("(Y)es or (N)o? ", map[string]string{"Y": "y", "N": "n"})
	return v == "y", err
}

func (t *Text) ImageKind() (image.Kind, error) {
	fmt.Fprintln(t.out, "What type of update do you want to push?")
	v, err := t.choose("(U)ser or (S)ystem? ", map[string]string{
		"U": string(image.KindUser),
		"S": string(image.KindSystem),
	})
	return image.Kind(v), err
}

func (t *Text) ImageFile() (string, error) {
	v, err := t.readLine("Enter the filename to open: ")
	return v, eofIsDecline(err)
}

func (t *Text) Method(kind image.Kind) (string, error) {
	options := map[string]string{"U": "usb"}
	question := "U:USB"
	if kind == image.KindUser {
		options["O"] = "ota"
		question += " or O:OTA"
	}
	fmt.Fprintln(t.out, "How do you want to push the update?")
	return t.choose(question+"? ", options)
}

func (t *Text) APIKey() (string, error) {
	const question = "Please enter your Hologram API key: "
	if t.fd < 0 {
		v, err := t.readLine(question)
		return v, eofIsDecline(err)
	}

	fmt.Fprint(t.out, question)
	key, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(key)), nil
}

func (t *Text) OrgID(orgs []ota.Organization) (int, error) {
	fmt.Fprintln(t.out, "Available organizations: ")
	ids := make([]int, 0, len(orgs))
	table := t.newTable()
	for _, o := range orgs {
		ids = append(ids, o.ID)
		table.AddRow(fmt.Sprintf("  ID#%d", o.ID), o.Name)
	}
	return t.pickID(table, ids, "Choose the organization id to search for the device: ", "Error: Invalid organization id")
}

func (t *Text) DeviceID(devices []ota.Device) (int, error) {
	fmt.Fprintln(t.out, "Available devices: ")
	ids := make([]int, 0, len(devices))
	table := t.newTable()
	for _, d := range devices {
		ids = append(ids, d.ID)
		table.AddRow(fmt.Sprintf("  ID#%d", d.ID), d.Name)
	}
	return t.pickID(table, ids, "Enter device ID to update: ", "Error: Invalid deviceid")
}

func (t *Text) newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Separator = " - "
	return table
}

func (t *Text) pickID(table *uitable.Table, ids []int, question, invalid string) (int, error) {
	if len(ids) == 0 {
		fmt.Fprintln(t.out, "  [NONE]")
		return 0, nil
	}
	fmt.Fprintln(t.out, table)

	for {
		answer, err := t.readLine(question)
		if err != nil {
			return 0, eofIsDecline(err)
		}
		id, err := strconv.Atoi(answer)
		if err != nil || id < 0 || !contains(ids, id) {
			fmt.Fprintln(t.out, invalid)
			continue
		}
		return id, nil
	}
}

func (t *Text) ConfirmBootUpdate(bootOld, bootNew, fwOld, fwNew version.Version) (bool, error) {
	msg := fmt.Sprintf("Boot upgrade is available, update now?\n%s -> %s\n", bootOld, bootNew)
	if fwNew.Greater(fwOld) {
		msg += fmt.Sprintf("Will also update system firmware\n%s -> %s\n", fwOld, fwNew)
	}
	fmt.Fprintln(t.out, msg)
	return t.yesNo()
}

func (t *Text) ConfirmFirmwareUpdate(fwOld, fwNew version.Version) (bool, error) {
	fmt.Fprintf(t.out, "New system firmware is available, update now?\n%s -> %s\n\n", fwOld, fwNew)
	return t.yesNo()
}

func (t *Text) FirmwareSavePath(suggested string) (string, error) {
	fmt.Fprintln(t.out, "Save the firmware before loading?")
	ok, err := t.yesNo()
	if err != nil || !ok {
		return "", err
	}

	path, err := t.readLine(fmt.Sprintf("Enter the filename to save [%s]: ", suggested))
	if err != nil {
		return "", eofIsDecline(err)
	}
	if path == "" {
		path = suggested
	}
	return path, nil
}

func (t *Text) ShowMessage(msg string) {
	fmt.Fprintln(t.out, msg)
}

func (t *Text) ShowError(err error) {
	fmt.Fprintln(t.out, "Error: "+err.Error())
}

func eofIsDecline(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
