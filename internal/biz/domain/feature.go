package domain

// Feature is the name of a toggleable policy
type Feature string

const (
	FeatureAntiDelete       Feature = "antidelete"
	FeatureAntiEdit         Feature = "antiedit"
	FeatureAntiDeleteStatus Feature = "antideletestatus"
	FeatureAutoView         Feature = "autoview"
	FeatureAutoReact        Feature = "autoreact"
	FeatureAutoReactMsg     Feature = "autoreactmsg"
	FeatureAutoTyping       Feature = "autotyping"
	FeatureAutoRecording    Feature = "autorecording"
	FeatureAutoRead         Feature = "autoread"
	FeatureAntiCall         Feature = "anticall"
	FeatureAntiSpam         Feature = "antispam"
	FeatureAntiBug          Feature = "antibug"
	FeatureAntiDemote       Feature = "antidemote"
	FeatureAntiLink         Feature = "antilink"
	FeatureViewOnce         Feature = "viewonce"
	FeatureChatbot          Feature = "chatbot"
)

// AllFeatures lists every known feature in display order
var AllFeatures = []Feature{
	FeatureAntiDelete,
	FeatureAntiEdit,
	FeatureAntiDeleteStatus,
	FeatureAutoView,
	FeatureAutoReact,
	FeatureAutoReactMsg,
	FeatureAutoTyping,
	FeatureAutoRecording,
	FeatureAutoRead,
	FeatureAntiCall,
	FeatureAntiSpam,
	FeatureAntiBug,
	FeatureAntiDemote,
	FeatureAntiLink,
	FeatureViewOnce,
	FeatureChatbot,
}

// GroupSettings are per-group switches kept by the settings store
type GroupSettings struct {
	Chat       string `json:"chat"`
	AntiLink   bool   `json:"antilink"`
	AntiDelete bool   `json:"antidelete"`
	AntiDemote bool   `json:"antidemote"`
}
