package config

import "fmt"

// Template data mirrors the YAML keys so templates can use {{ .zone.name }},
// {{ .remote.app_path }} and so on.

// ZoneData returns the template data for a zone, including its name. A zone
// listed without settings has no data.
func (c *Config) ZoneData(name string) (map[string]interface{}, error) {
	zc, err := c.Zones.Get(name)
	if err != nil {
		return nil, err
	}
	if zc.Empty() {
		return nil, fmt.Errorf("%w: no configuration found for zone %q", ErrZoneNotFound, name)
	}

	data := make(map[string]interface{}, len(zc.Extra)+3)
	for k, v := range zc.Extra {
		data[k] = v
	}
	data["name"] = name
	data["autoupdate"] = zc.AutoUpdate
	data["rpz"] = zc.RPZ.Data()

	return data, nil
}

// Data returns the RPZ settings as a template map
func (r RPZConfig) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(r.Params)+1)
	for k, v := range r.Params {
		data[k] = v
	}
	data["enabled"] = r.Enabled
	return data
}

// Data returns the deploy settings as a template map
func (d DeployConfig) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(d.Extra)+7)
	for k, v := range d.Extra {
		data[k] = v
	}
	data["service_name"] = d.ServiceName
	data["app_path"] = d.AppPath
	data["log_path"] = d.LogPath
	data["user"] = d.User
	data["group"] = d.Group
	data["cron_path"] = d.CronPath
	data["package_name"] = d.PackageName
	return data
}
