package vsd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/op/go-logging"
	"github.com/satori/go.uuid"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

const (
	bluezBusName                     = "org.bluez"
	bluezAdapterInterface            = "org.bluez.Adapter1"
	bluezDeviceInterface             = "org.bluez.Device1"
	bluezGattServiceInterface        = "org.bluez.GattService1"
	bluezGattCharacteristicInterface = "org.bluez.GattCharacteristic1"
	dbusPropertiesInterface          = "org.freedesktop.DBus.Properties"
	dbusObjectManagerInterface       = "org.freedesktop.DBus.ObjectManager"
)

const (
	scanPollInterval        = 500 * time.Millisecond
	connectCallTimeout      = 30 * time.Second
	servicesResolvedTimeout = 15 * time.Second
	servicesResolvedPoll    = 250 * time.Millisecond
)

type charKey struct {
	service        string
	characteristic string
}

//	BlueZRadio drives the dispenser link through the BlueZ D-Bus API. Device
//	IDs are BlueZ object paths, e.g. /org/bluez/hci0/dev_C4_4F_33_12_AB_9E.
//	The session layer serializes characteristic traffic, so the lock here
//	only guards connection bookkeeping.
type BlueZRadio struct {
	sync.Mutex
	adapter string
	log     *logging.Logger

	conn            *dbus.Conn
	connectedPath   dbus.ObjectPath
	characteristics map[charKey]dbus.ObjectPath
	watchStop       chan struct{}
	watchRule       string
}

func NewBlueZRadio(adapter string, log *logging.Logger) *BlueZRadio {
	if adapter == "" {
		adapter = "hci0"
	}
	return &BlueZRadio{
		adapter: adapter,
		log:     log,
	}
}

//	NewPlatformRadio returns the live radio backend for this host.
func NewPlatformRadio(adapter string, log *logging.Logger) (verashield.RadioI, error) {
	return NewBlueZRadio(adapter, log), nil
}

func (radio *BlueZRadio) adapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + radio.adapter)
}

func (radio *BlueZRadio) Initialize() (err error) {
	radio.Lock()
	defer radio.Unlock()
	if radio.conn != nil {
		return
	}
	//	the system bus connection is shared process-wide and never closed
	conn, err := dbus.SystemBus()
	if err != nil {
		err = fmt.Errorf("bluez: system bus: %v", err)
		return
	}

	adapter := conn.Object(bluezBusName, radio.adapterPath())
	powered, err := boolProperty(adapter, bluezAdapterInterface+".Powered")
	if err != nil {
		err = fmt.Errorf("bluez: adapter %s: %v", radio.adapter, err)
		return
	}
	if !powered {
		if err = adapter.SetProperty(bluezAdapterInterface+".Powered", dbus.MakeVariant(true)); err != nil {
			err = fmt.Errorf("bluez: powering adapter %s: %v", radio.adapter, err)
			return
		}
		radio.log.Notice("powered on adapter", radio.adapter)
	}
	radio.conn = conn
	return
}

func (radio *BlueZRadio) Scan(window time.Duration, accept func(verashield.Advertisement) bool) (results []verashield.Advertisement, err error) {
	conn, err := radio.bus()
	if err != nil {
		return
	}
	adapter := conn.Object(bluezBusName, radio.adapterPath())

	filter := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant("le"),
		"DuplicateData": dbus.MakeVariant(true),
	}
	if call := adapter.Call(bluezAdapterInterface+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		err = fmt.Errorf("bluez: discovery filter: %v", call.Err)
		return
	}
	if call := adapter.Call(bluezAdapterInterface+".StartDiscovery", 0); call.Err != nil {
		//	another client may already be scanning; BlueZ keeps updating the
		//	cached device list either way
		if !strings.Contains(call.Err.Error(), "InProgress") {
			err = fmt.Errorf("bluez: start discovery: %v", call.Err)
			return
		}
	} else {
		defer func() {
			if call := adapter.Call(bluezAdapterInterface+".StopDiscovery", 0); call.Err != nil {
				radio.log.Warning("stop discovery:", call.Err)
			}
		}()
	}

	deadline := time.After(window)
	ticker := time.NewTicker(scanPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			seen, pollErr := radio.enumerateDevices(conn)
			if pollErr != nil {
				radio.log.Warning("device enumeration:", pollErr)
				continue
			}
			for _, ad := range seen {
				if accept == nil || accept(ad) {
					results = append(results, ad)
				}
			}
		}
	}
}

func (radio *BlueZRadio) enumerateDevices(conn *dbus.Conn) (ads []verashield.Advertisement, err error) {
	objects, err := managedObjects(conn)
	if err != nil {
		return
	}
	prefix := string(radio.adapterPath()) + "/"
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		device, ok := interfaces[bluezDeviceInterface]
		if !ok {
			continue
		}
		ad := verashield.Advertisement{
			ID:   verashield.DeviceID(path),
			Name: stringProp(device, "Name"),
			RSSI: int16Prop(device, "RSSI"),
		}
		if ad.Name == "" {
			ad.Name = stringProp(device, "Alias")
		}
		ads = append(ads, ad)
	}
	return
}

func (radio *BlueZRadio) Connect(id verashield.DeviceID, onDisconnect func()) (err error) {
	conn, err := radio.bus()
	if err != nil {
		return
	}
	devicePath := dbus.ObjectPath(id)
	if !devicePath.IsValid() {
		err = fmt.Errorf("bluez: invalid device path %q", id)
		return
	}
	//	a watch left over from a previous link would fire into a dead session
	radio.stopWatch()

	device := conn.Object(bluezBusName, devicePath)
	ctx, cancel := context.WithTimeout(context.Background(), connectCallTimeout)
	defer cancel()
	if call := device.CallWithContext(ctx, bluezDeviceInterface+".Connect", 0); call.Err != nil {
		err = fmt.Errorf("bluez: connect %s: %v", id, call.Err)
		return
	}

	if err = radio.waitServicesResolved(device); err != nil {
		device.Call(bluezDeviceInterface+".Disconnect", 0)
		return
	}

	characteristics, err := discoverCharacteristics(conn, devicePath)
	if err != nil {
		device.Call(bluezDeviceInterface+".Disconnect", 0)
		return
	}

	radio.Lock()
	radio.connectedPath = devicePath
	radio.characteristics = characteristics
	radio.Unlock()

	radio.watchDisconnect(conn, devicePath, onDisconnect)
	return
}

//	Watches the device's Connected property and reports the first drop,
//	whichever side hung up. The goroutine exits after reporting, so the
//	callback cannot fire twice for one link.
func (radio *BlueZRadio) watchDisconnect(conn *dbus.Conn, devicePath dbus.ObjectPath, onDisconnect func()) {
	rule := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='PropertiesChanged',path='%s'",
		bluezBusName, dbusPropertiesInterface, devicePath)
	if call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		radio.log.Warning("link watch unavailable:", call.Err)
		return
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	stop := make(chan struct{})

	radio.Lock()
	radio.watchStop = stop
	radio.watchRule = rule
	radio.Unlock()

	go func() {
		defer conn.RemoveSignal(signals)
		for {
			select {
			case <-stop:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path != devicePath || sig.Name != dbusPropertiesInterface+".PropertiesChanged" {
					continue
				}
				if len(sig.Body) < 2 {
					continue
				}
				iface, _ := sig.Body[0].(string)
				if iface != bluezDeviceInterface {
					continue
				}
				changed, _ := sig.Body[1].(map[string]dbus.Variant)
				variant, exists := changed["Connected"]
				if !exists {
					continue
				}
				if connected, _ := variant.Value().(bool); !connected {
					radio.log.Notice("link down:", devicePath)
					if onDisconnect != nil {
						onDisconnect()
					}
					return
				}
			}
		}
	}()
}

func (radio *BlueZRadio) stopWatch() {
	radio.Lock()
	conn := radio.conn
	stop := radio.watchStop
	rule := radio.watchRule
	radio.watchStop = nil
	radio.watchRule = ""
	radio.Unlock()
	if stop != nil {
		close(stop)
	}
	if rule != "" && conn != nil {
		conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
	}
}

func (radio *BlueZRadio) waitServicesResolved(device dbus.BusObject) (err error) {
	deadline := time.After(servicesResolvedTimeout)
	ticker := time.NewTicker(servicesResolvedPoll)
	defer ticker.Stop()
	for {
		resolved, propErr := boolProperty(device, bluezDeviceInterface+".ServicesResolved")
		if propErr == nil && resolved {
			return
		}
		select {
		case <-deadline:
			err = fmt.Errorf("bluez: services not resolved on %s", device.Path())
			return
		case <-ticker.C:
		}
	}
}

func (radio *BlueZRadio) Disconnect(id verashield.DeviceID) (err error) {
	conn, err := radio.bus()
	if err != nil {
		return
	}
	device := conn.Object(bluezBusName, dbus.ObjectPath(id))
	if call := device.Call(bluezDeviceInterface+".Disconnect", 0); call.Err != nil {
		err = fmt.Errorf("bluez: disconnect %s: %v", id, call.Err)
	}
	radio.Lock()
	if radio.connectedPath == dbus.ObjectPath(id) {
		radio.connectedPath = ""
		radio.characteristics = nil
	}
	radio.Unlock()
	//	the Connected property flips to false, which the link watch reports
	//	the same way as a remote drop
	return
}

func (radio *BlueZRadio) ListServices(id verashield.DeviceID) (services []uuid.UUID, err error) {
	conn, err := radio.bus()
	if err != nil {
		return
	}
	objects, err := managedObjects(conn)
	if err != nil {
		return
	}
	prefix := string(id) + "/"
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		service, ok := interfaces[bluezGattServiceInterface]
		if !ok {
			continue
		}
		parsed, parseErr := uuid.FromString(stringProp(service, "UUID"))
		if parseErr != nil {
			continue
		}
		services = append(services, parsed)
	}
	return
}

func (radio *BlueZRadio) ReadValue(id verashield.DeviceID, service, characteristic uuid.UUID) (value []byte, err error) {
	char, err := radio.characteristicObject(id, service, characteristic)
	if err != nil {
		return
	}
	call := char.Call(bluezGattCharacteristicInterface+".ReadValue", 0, map[string]dbus.Variant{})
	if call.Err != nil {
		//	raw call error, the session classifies on the org.bluez name
		err = call.Err
		return
	}
	err = call.Store(&value)
	return
}

func (radio *BlueZRadio) WriteValue(id verashield.DeviceID, service, characteristic uuid.UUID, value []byte) (err error) {
	char, err := radio.characteristicObject(id, service, characteristic)
	if err != nil {
		return
	}
	if call := char.Call(bluezGattCharacteristicInterface+".WriteValue", 0, value, map[string]dbus.Variant{}); call.Err != nil {
		err = call.Err
	}
	return
}

//	BlueZ does not let clients pick the ATT MTU; the kernel negotiates it
//	during connect. Report what was granted, capped at the requested size.
func (radio *BlueZRadio) RequestMTU(id verashield.DeviceID, desired int) (granted int, err error) {
	conn, err := radio.bus()
	if err != nil {
		return
	}
	device := conn.Object(bluezBusName, dbus.ObjectPath(id))
	reported := uint16Property(device, bluezDeviceInterface+".MTU")
	if reported == 0 {
		radio.Lock()
		var charPath dbus.ObjectPath
		for _, path := range radio.characteristics {
			charPath = path
			break
		}
		radio.Unlock()
		if charPath != "" {
			char := conn.Object(bluezBusName, charPath)
			reported = uint16Property(char, bluezGattCharacteristicInterface+".MTU")
		}
	}
	if reported == 0 {
		err = fmt.Errorf("bluez: MTU not reported for %s", id)
		return
	}
	granted = int(reported)
	if granted > desired {
		granted = desired
	}
	return
}

func (radio *BlueZRadio) Stop() (err error) {
	radio.stopWatch()
	radio.Lock()
	radio.connectedPath = ""
	radio.characteristics = nil
	//	the bus connection itself is process-shared, leave it open
	radio.conn = nil
	radio.Unlock()
	return
}

func (radio *BlueZRadio) bus() (conn *dbus.Conn, err error) {
	radio.Lock()
	conn = radio.conn
	radio.Unlock()
	if conn == nil {
		err = fmt.Errorf("bluez: radio not initialized")
	}
	return
}

func (radio *BlueZRadio) characteristicObject(id verashield.DeviceID, service, characteristic uuid.UUID) (obj dbus.BusObject, err error) {
	key := charKey{
		service:        strings.ToLower(service.String()),
		characteristic: strings.ToLower(characteristic.String()),
	}
	radio.Lock()
	conn := radio.conn
	connectedPath := radio.connectedPath
	path, ok := radio.characteristics[key]
	radio.Unlock()
	if conn == nil {
		err = fmt.Errorf("bluez: radio not initialized")
		return
	}
	if connectedPath != dbus.ObjectPath(id) {
		err = fmt.Errorf("bluez: not connected to %s", id)
		return
	}
	if !ok {
		err = fmt.Errorf("bluez: characteristic %s not found on %s", characteristic, id)
		return
	}
	obj = conn.Object(bluezBusName, path)
	return
}

//	Maps service/characteristic UUID pairs to their object paths. BlueZ lays
//	characteristics out under their service node, so the parent path
//	identifies the service.
func discoverCharacteristics(conn *dbus.Conn, devicePath dbus.ObjectPath) (characteristics map[charKey]dbus.ObjectPath, err error) {
	objects, err := managedObjects(conn)
	if err != nil {
		return
	}
	prefix := string(devicePath) + "/"

	serviceUUIDs := map[dbus.ObjectPath]string{}
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		if service, ok := interfaces[bluezGattServiceInterface]; ok {
			serviceUUIDs[path] = strings.ToLower(stringProp(service, "UUID"))
		}
	}

	characteristics = map[charKey]dbus.ObjectPath{}
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		char, ok := interfaces[bluezGattCharacteristicInterface]
		if !ok {
			continue
		}
		slash := strings.LastIndex(string(path), "/")
		if slash < 0 {
			continue
		}
		serviceUUID, ok := serviceUUIDs[dbus.ObjectPath(string(path)[:slash])]
		if !ok {
			continue
		}
		characteristics[charKey{serviceUUID, strings.ToLower(stringProp(char, "UUID"))}] = path
	}
	if len(characteristics) == 0 {
		err = fmt.Errorf("bluez: no characteristics under %s", devicePath)
	}
	return
}

func managedObjects(conn *dbus.Conn) (objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant, err error) {
	call := conn.Object(bluezBusName, "/").Call(dbusObjectManagerInterface+".GetManagedObjects", 0)
	if call.Err != nil {
		err = fmt.Errorf("bluez: managed objects: %v", call.Err)
		return
	}
	err = call.Store(&objects)
	return
}

func boolProperty(obj dbus.BusObject, name string) (value bool, err error) {
	variant, err := obj.GetProperty(name)
	if err != nil {
		return
	}
	var ok bool
	value, ok = variant.Value().(bool)
	if !ok {
		err = fmt.Errorf("property %s is not a bool", name)
	}
	return
}

func uint16Property(obj dbus.BusObject, name string) (value uint16) {
	variant, err := obj.GetProperty(name)
	if err != nil {
		return
	}
	value, _ = variant.Value().(uint16)
	return
}

func stringProp(props map[string]dbus.Variant, name string) (value string) {
	if variant, exists := props[name]; exists {
		value, _ = variant.Value().(string)
	}
	return
}

func int16Prop(props map[string]dbus.Variant, name string) (value int16) {
	if variant, exists := props[name]; exists {
		value, _ = variant.Value().(int16)
	}
	return
}
